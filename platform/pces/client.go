// Package pces implements the preconsensus event stream sequencing,
// durability, and keystone-flush protocol described in spec.md §4.5: the
// consensus round handler must never receive a round whose keystone event
// has not been durably flushed, and the flush request that makes that
// happen must never be blocked behind a full round-handler queue.
package pces

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Event is a single preconsensus event submitted to the writer for
// durable storage, tagged with the sequence number the ledger assigned it.
type Event struct {
	ID             string
	SequenceNumber int64
	Payload        []byte
}

// WriterClient is the PCES writer contract from spec.md §6: it accepts
// events and flush requests, and emits a monotonically non-decreasing
// latest-durable sequence number.
type WriterClient interface {
	WriteEvent(ctx context.Context, ev Event) error
	SubmitFlushRequest(ctx context.Context, keystoneSequenceNumber int64) error
	SetMinimumAncientIdentifierToStore(ctx context.Context, id int64) error
	BeginStreamingNewEvents(ctx context.Context) error
	LatestDurableSequenceNumber(ctx context.Context) (int64, error)
}

// advanceDurableScript atomically advances the durable mark only if the
// proposed sequence number is greater than what's stored — the same
// "only write if newer" shape as the teacher's versioned-set script,
// simplified to a bare monotonic counter.
const advanceDurableScript = `
local current = redis.call("GET", KEYS[1])
if not current or tonumber(ARGV[1]) > tonumber(current) then
    redis.call("SET", KEYS[1], ARGV[1])
    return 1
end
return 0
`

// RedisWriterClient is a wiring-grade WriterClient: it persists the
// latest-durable mark in Redis with an atomic compare-and-advance script,
// and mirrors event payloads under a per-sequence key. It does not talk to
// a real event-stream transport or gossip network — that integration is
// out of scope (spec.md Non-goals).
//
// Grounded on control_plane/store/redis_versioned.go's preloaded Lua
// script + EvalSha/NOSCRIPT-reload pattern.
type RedisWriterClient struct {
	client        *redis.Client
	durableKey    string
	advanceSHA    string
	minAncientKey string
	streamingFlag string
}

// NewRedisWriterClient preloads the advance script and verifies
// connectivity, following control_plane/store/redis.go's NewRedisStore.
func NewRedisWriterClient(ctx context.Context, client *redis.Client, keyPrefix string) (*RedisWriterClient, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	sha, err := client.ScriptLoad(ctx, advanceDurableScript).Result()
	if err != nil {
		return nil, errors.New("pces: failed to preload durable-advance script: " + err.Error())
	}
	return &RedisWriterClient{
		client:        client,
		durableKey:    keyPrefix + ":durable",
		advanceSHA:    sha,
		minAncientKey: keyPrefix + ":min-ancient",
		streamingFlag: keyPrefix + ":streaming",
	}, nil
}

func (w *RedisWriterClient) WriteEvent(ctx context.Context, ev Event) error {
	key := w.durableKey + ":event:" + ev.ID
	return w.client.Set(ctx, key, ev.Payload, 0).Err()
}

func (w *RedisWriterClient) SubmitFlushRequest(ctx context.Context, keystoneSequenceNumber int64) error {
	_, err := w.client.EvalSha(ctx, w.advanceSHA, []string{w.durableKey}, keystoneSequenceNumber).Result()
	if err != nil && isNoScript(err) {
		w.advanceSHA, err = w.client.ScriptLoad(ctx, advanceDurableScript).Result()
		if err != nil {
			return err
		}
		_, err = w.client.EvalSha(ctx, w.advanceSHA, []string{w.durableKey}, keystoneSequenceNumber).Result()
	}
	return err
}

func (w *RedisWriterClient) SetMinimumAncientIdentifierToStore(ctx context.Context, id int64) error {
	return w.client.Set(ctx, w.minAncientKey, id, 0).Err()
}

func (w *RedisWriterClient) BeginStreamingNewEvents(ctx context.Context) error {
	return w.client.Set(ctx, w.streamingFlag, "1", 0).Err()
}

func (w *RedisWriterClient) LatestDurableSequenceNumber(ctx context.Context) (int64, error) {
	val, err := w.client.Get(ctx, w.durableKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func isNoScript(err error) bool {
	return err != nil && len(err.Error()) >= 8 && err.Error()[:8] == "NOSCRIPT"
}
