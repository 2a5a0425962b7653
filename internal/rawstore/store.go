// Package rawstore keeps every webhook body verbatim, addressed by the object
// key the gateway computes before any write.
package rawstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

var ErrNotFound = errors.New("raw_object_not_found")

type Store interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ObjectKey returns raw/<channel>/<room_key>/<received_at>.json. The channel is
// slugged so provider spellings share a prefix; room keys keep their case. The
// timestamp is RFC3339Nano in UTC.
func ObjectKey(channel, roomKey string, receivedAt time.Time) string {
	return fmt.Sprintf("raw/%s/%s/%s.json",
		keySegment(slug.Make(channel)),
		keySegment(roomKey),
		receivedAt.UTC().Format(time.RFC3339Nano),
	)
}

// keySegment keeps provider values from adding path levels to the key.
func keySegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.ReplaceAll(s, "/", "_")
}
