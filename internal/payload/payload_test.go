package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := Decode([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{``, `[]`, `"text"`, `12`, `null`, `{"a":1} {"b":2}`, `{bad`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrNotObject, raw)
	}
}

func TestChannelFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"channel", `{"channel":"whatsapp","provider":"qontak"}`, "whatsapp"},
		{"provider", `{"provider":"qontak","source":"web"}`, "qontak"},
		{"source", `{"source":"web"}`, "web"},
		{"blank channel skipped", `{"channel":"  ","source":"web"}`, "web"},
		{"default", `{}`, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Channel.Extract(mustDecode(t, tc.raw))
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRoomKeyFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"top level", `{"room_id":"r-1","room":{"id":"r-2"}}`, "r-1", true},
		{"nested", `{"room":{"id":"r-2"},"roomId":"r-3"}`, "r-2", true},
		{"camel", `{"roomId":"r-3"}`, "r-3", true},
		{"numeric id keeps digits", `{"room_id":12345678901234567890}`, "12345678901234567890", true},
		{"room is not an object", `{"room":"r-9"}`, "", false},
		{"absent", `{"message":{"text":"hi"}}`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RoomKey.Extract(mustDecode(t, tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMessageFields(t *testing.T) {
	p := mustDecode(t, `{
		"message": {"id": "m-1", "text": "halo kak"},
		"msg_id": "m-2",
		"sender": {"type": "customer", "id": "u-1", "phone": "+62811"},
		"phone": "+62899"
	}`)

	id, ok := MessageID.Extract(p)
	assert.True(t, ok)
	assert.Equal(t, "m-1", id)

	st, _ := SenderType.Extract(p)
	assert.Equal(t, "customer", st)
	sid, _ := SenderID.Extract(p)
	assert.Equal(t, "u-1", sid)
	phone, _ := Phone.Extract(p)
	assert.Equal(t, "+62811", phone)
	assert.Equal(t, "halo kak", Content(p))
}

func TestMessageFieldFallbacks(t *testing.T) {
	p := mustDecode(t, `{"msg_id":"m-2","sender_type":"agent","sender_id":"a-1","phone":"+62899"}`)

	id, _ := MessageID.Extract(p)
	assert.Equal(t, "m-2", id)
	st, _ := SenderType.Extract(p)
	assert.Equal(t, "agent", st)
	phone, _ := Phone.Extract(p)
	assert.Equal(t, "+62899", phone)

	_, ok := SenderPhone.Extract(p)
	assert.False(t, ok)
}

func TestContentFallbacks(t *testing.T) {
	assert.Equal(t, "body text", Content(mustDecode(t, `{"message":{"body":"body text"}}`)))
	assert.Equal(t, "plain", Content(mustDecode(t, `{"message":"plain"}`)))
	assert.Equal(t, `{"id":"m-1","type":"image"}`, Content(mustDecode(t, `{"message":{"type":"image","id":"m-1"}}`)))
	assert.Equal(t, "{}", Content(mustDecode(t, `{"room_id":"r-1"}`)))
}

func TestTimestamp(t *testing.T) {
	ts, ok := Timestamp(mustDecode(t, `{"timestamp":"2025-10-01T10:00:00+07:00"}`))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 1, 3, 0, 0, 0, time.UTC), ts)

	ts, ok = Timestamp(mustDecode(t, `{"timestamp":"garbage","created_at":"2025-10-02 08:30:00"}`))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC), ts)

	ts, ok = Timestamp(mustDecode(t, `{"timestamp":1700000000000000000}`))
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), ts)

	ts, ok = Timestamp(mustDecode(t, `{"timestamp":1e30,"created_at":"2025-10-02"}`))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC), ts)

	_, ok = Timestamp(mustDecode(t, `{"timestamp":"yesterday"}`))
	assert.False(t, ok)
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2025-10-01T10:00:00Z", time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC), true},
		{"2025-10-01T10:00:00.123456Z", time.Date(2025, 10, 1, 10, 0, 0, 123456000, time.UTC), true},
		{"2025-10-01T10:00:00", time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC), true},
		{"2025-10-01", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), true},
		{"1759312800", time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC), true},
		{"1759312800000", time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC), true},
		{"1700000000000000", time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), true},
		{"1700000000000000000", time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), true},
		{"1759312800.5", time.Date(2025, 10, 1, 10, 0, 0, 500000000, time.UTC), true},
		{"1e30", time.Time{}, false},
		{"253402300800", time.Time{}, false},
		{"0001-01-01T00:00:00Z", time.Time{}, false},
		{"", time.Time{}, false},
		{"0", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseTime(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestMeta(t *testing.T) {
	assert.JSONEq(t, `{"agent":"a-1"}`, string(Meta(mustDecode(t, `{"meta":{"agent":"a-1"}}`))))
	assert.Equal(t, "{}", string(Meta(mustDecode(t, `{"meta":"x"}`))))
}

func TestFieldDefault(t *testing.T) {
	f := Field{Name: "x", Rules: []Rule{Path("a")}}
	_, ok := f.Extract(Payload{})
	assert.False(t, ok)

	got, ok := Field{Rules: []Rule{Path("n")}}.Extract(Payload{"n": 1.5e6})
	assert.True(t, ok)
	assert.Equal(t, "1500000", got)
}
