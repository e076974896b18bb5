package metrics

import (
	"strings"
	"testing"
)

func TestDescribeListsEveryFamily(t *testing.T) {
	out := Describe()
	for _, f := range families {
		if !strings.Contains(out, f.name) {
			t.Fatalf("Describe() missing family %q:\n%s", f.name, out)
		}
	}
}
