package payload

import (
	"encoding/json"
	"time"
)

// Rule extracts one candidate value from a payload.
type Rule func(Payload) (string, bool)

// Path is a Rule reading the scalar at the given nested path.
func Path(path ...string) Rule {
	return func(p Payload) (string, bool) {
		return p.String(path...)
	}
}

// Field is a named, ordered fallback chain.
type Field struct {
	Name    string
	Rules   []Rule
	Default string
}

// Extract returns the first rule hit, else Default. ok is false only when no
// rule matched and Default is empty.
func (f Field) Extract(p Payload) (string, bool) {
	for _, rule := range f.Rules {
		if v, ok := rule(p); ok {
			return v, true
		}
	}
	if f.Default != "" {
		return f.Default, true
	}
	return "", false
}

const UnknownChannel = "unknown"

var (
	Channel = Field{
		Name:    "channel",
		Rules:   []Rule{Path("channel"), Path("provider"), Path("source")},
		Default: UnknownChannel,
	}
	RoomKey = Field{
		Name:  "room_key",
		Rules: []Rule{Path("room_id"), Path("room", "id"), Path("roomId")},
	}
	MessageID = Field{
		Name:  "message_id",
		Rules: []Rule{Path("message", "id"), Path("msg_id"), Path("message_id")},
	}
	SenderType = Field{
		Name:  "sender_type",
		Rules: []Rule{Path("sender", "type"), Path("sender_type")},
	}
	SenderID = Field{
		Name:  "sender_id",
		Rules: []Rule{Path("sender", "id"), Path("sender_id")},
	}
	Phone = Field{
		Name:  "phone",
		Rules: []Rule{Path("sender", "phone"), Path("phone"), Path("sender", "phone_number")},
	}
	// SenderPhone only looks inside the sender object. The classifier uses it once
	// the explicit message column is known to be empty.
	SenderPhone = Field{
		Name:  "sender_phone",
		Rules: []Rule{Path("sender", "phone"), Path("sender", "phone_number"), Path("sender", "mobile")},
	}
	timestampField = Field{
		Name:  "timestamp",
		Rules: []Rule{Path("timestamp"), Path("created_at"), Path("message", "timestamp")},
	}
	contentField = Field{
		Name:  "content",
		Rules: []Rule{Path("message", "text"), Path("message", "body"), Path("message")},
	}
)

// Content returns the message text, falling back to the JSON form of the
// message value, or "{}" when the payload has no message at all.
func Content(p Payload) string {
	if v, ok := contentField.Extract(p); ok {
		return v
	}
	msg, ok := p.Lookup("message")
	if !ok {
		return "{}"
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Timestamp returns the event time carried by the payload.
func Timestamp(p Payload) (time.Time, bool) {
	for _, rule := range timestampField.Rules {
		raw, ok := rule(p)
		if !ok {
			continue
		}
		if t, ok := ParseTime(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// Meta returns the JSON encoding of the payload's meta object, or "{}".
func Meta(p Payload) []byte {
	meta, ok := p.Object("meta")
	if !ok {
		return []byte("{}")
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Synthetic is the minimal payload used when the raw copy cannot be read.
func Synthetic(channel, roomKey string) Payload {
	return Payload{
		"provider": channel,
		"room_id":  roomKey,
	}
}
