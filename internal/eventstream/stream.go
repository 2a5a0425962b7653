// Package eventstream is the durable, append-only queue between the gateway
// and the normalization worker. Delivery is at-least-once: an entry stays
// pending for its consumer group until it is acked.
package eventstream

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	fieldProvider     = "provider"
	fieldRoomID       = "room_id"
	fieldRawObjectKey = "raw_object_key"
	fieldReceivedAt   = "received_at"
)

var ErrMalformedEntry = errors.New("malformed_stream_entry")

// Entry is one queued webhook event. ID is assigned by the stream on Append.
// Err is set when the stored fields could not be decoded; such entries still
// need an ack so they do not loop forever. Deliveries counts deliveries to the
// group including the current one, and is 0 when unknown.
type Entry struct {
	ID           string
	Provider     string
	RoomKey      string
	RawObjectKey string
	ReceivedAt   time.Time
	Deliveries   int64
	Err          error
}

// Stream is implemented by the Redis adapter and by in-memory fakes in tests.
type Stream interface {
	Append(ctx context.Context, entry Entry) (string, error)
	EnsureGroup(ctx context.Context, group string) error
	ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]Entry, error)
	Ack(ctx context.Context, group, id string) error
	PendingCount(ctx context.Context, group string) (int64, error)
	Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]Entry, error)
}

func (e Entry) values() map[string]any {
	receivedAt := e.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return map[string]any{
		fieldProvider:     e.Provider,
		fieldRoomID:       e.RoomKey,
		fieldRawObjectKey: e.RawObjectKey,
		fieldReceivedAt:   receivedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeEntry(id string, values map[string]any) Entry {
	entry := Entry{
		ID:           id,
		Provider:     fieldString(values, fieldProvider),
		RoomKey:      fieldString(values, fieldRoomID),
		RawObjectKey: fieldString(values, fieldRawObjectKey),
	}
	if raw := fieldString(values, fieldReceivedAt); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.ReceivedAt = ts.UTC()
		}
	}
	if entry.RoomKey == "" || entry.RawObjectKey == "" {
		entry.Err = ErrMalformedEntry
	}
	return entry
}

func fieldString(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
