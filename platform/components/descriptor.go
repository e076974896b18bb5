package components

// Capabilities is the optional capability set a component can publish
// beyond its primary handler, named directly in spec.md §4.6/§9: "dynamic
// dispatch" replaced by a descriptor of optional hooks, instead of the
// reflective lookup a singleton builder would need.
type Capabilities struct {
	Clear          func()
	SetEventWindow func(EventWindow)
}

// WiringDescriptor names a component and the capabilities it supports, so
// a caller can invoke its hooks through CallClear/CallSetEventWindow
// without a type switch. Neither wiring.Model nor platform/coordinator
// reads descriptors; the coordinator targets components through its own
// ComponentRef.
type WiringDescriptor struct {
	Name         string
	Capabilities Capabilities
}

// CallClear invokes the descriptor's clear hook if present. No-op
// otherwise.
func (d WiringDescriptor) CallClear() {
	if d.Capabilities.Clear != nil {
		d.Capabilities.Clear()
	}
}

// CallSetEventWindow invokes the descriptor's window hook if present.
func (d WiringDescriptor) CallSetEventWindow(w EventWindow) {
	if d.Capabilities.SetEventWindow != nil {
		d.Capabilities.SetEventWindow(w)
	}
}
