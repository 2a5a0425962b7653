package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the handle to run on so callers can scope several
// writes to one transaction.
type Repository interface {
	// UpsertRoom inserts room when its RoomKey is new. Either way
	// last_activity_at only moves forward to activityAt. The stored row is returned.
	UpsertRoom(ctx context.Context, db *gorm.DB, room *Room, activityAt time.Time) (*Room, error)
	// InsertMessage reports false when (room_id, msg_id) already exists.
	InsertMessage(ctx context.Context, db *gorm.DB, msg *Message) (bool, error)
	FindRoomByKey(ctx context.Context, db *gorm.DB, roomKey string) (*Room, error)
	// ListRoomsAfter pages rooms by ascending id.
	ListRoomsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Room, error)
	// ListMessages returns a room's messages ordered by created_at, then id.
	ListMessages(ctx context.Context, db *gorm.DB, roomID snowflake.ID) ([]Message, error)
	CountMessages(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (int64, error)
}
