package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() roomdomain.Repository {
	return &repo{}
}

func (r *repo) UpsertRoom(ctx context.Context, db *gorm.DB, room *roomdomain.Room, activityAt time.Time) (*roomdomain.Room, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoNothing: true,
		}).
		Create(room).Error
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).
		Model(&roomdomain.Room{}).
		Where("room_id = ? AND last_activity_at < ?", room.RoomKey, activityAt).
		Update("last_activity_at", activityAt).Error
	if err != nil {
		return nil, err
	}

	return r.FindRoomByKey(ctx, db, room.RoomKey)
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, msg *roomdomain.Message) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "msg_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindRoomByKey(ctx context.Context, db *gorm.DB, roomKey string) (*roomdomain.Room, error) {
	var room roomdomain.Room
	err := db.WithContext(ctx).Where("room_id = ?", roomKey).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *repo) ListRoomsAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]roomdomain.Room, error) {
	var rooms []roomdomain.Room
	err := db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rooms).Error
	return rooms, err
}

func (r *repo) ListMessages(ctx context.Context, db *gorm.DB, roomID snowflake.ID) ([]roomdomain.Message, error) {
	var msgs []roomdomain.Message
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *repo) CountMessages(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&roomdomain.Message{}).Where("room_id = ?", roomID).Count(&n).Error
	return n, err
}
