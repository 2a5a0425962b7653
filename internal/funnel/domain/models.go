// Package domain holds the derived funnel projection, one record per room.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Record is recomputed from the full message history on every pass. Stage
// dates are calendar dates in the classifier's timezone, held as midnight UTC.
type Record struct {
	ID               snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	RoomID           snowflake.ID `gorm:"not null;uniqueIndex:ux_funnel_room_id"`
	RoomKey          string       `gorm:"column:room_key;->;-:migration"`
	LeadsDate        *time.Time   `gorm:"type:date;index:ix_funnel_leads_date"`
	Channel          string       `gorm:"type:text;not null"`
	Phone            *string      `gorm:"type:text"`
	BookingDate      *time.Time   `gorm:"type:date"`
	TransactionDate  *time.Time   `gorm:"type:date"`
	TransactionValue *float64     `gorm:"type:numeric(20,2)"`
	OpeningKeyword   *string      `gorm:"type:text"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
}

func (Record) TableName() string { return "funnel" }

var (
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidPayload   = errors.New("invalid_raw_payload")
	ErrNoMessages       = errors.New("room_has_no_messages")
)

// ReportFilter bounds leads_date inclusively. Zero values are open ends.
type ReportFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Channel   string
	PageSize  int
	PageToken string
}

type ReportPage struct {
	Records       []Record
	NextPageToken string
}

type ChannelSummary struct {
	Channel             string  `json:"channel"`
	LeadsCount          int64   `json:"leads_count"`
	BookingsCount       int64   `json:"bookings_count"`
	TransactionsCount   int64   `json:"transactions_count"`
	TransactionValueSum float64 `json:"transaction_value_sum"`
}

type Repository interface {
	// Upsert writes rec keyed by room_id, overwriting every column except created_at.
	Upsert(ctx context.Context, db *gorm.DB, rec *Record) error
	FindByRoomID(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*Record, error)
	List(ctx context.Context, db *gorm.DB, filter ReportFilter) (ReportPage, error)
	Summary(ctx context.Context, db *gorm.DB, filter ReportFilter) ([]ChannelSummary, error)
}

// PassResult summarises one classification pass.
type PassResult struct {
	Rooms      int
	Classified int
	Empty      int
	Failed     int
}

type Service interface {
	Recompute(ctx context.Context) (PassResult, error)
	Report(ctx context.Context, filter ReportFilter) (ReportPage, error)
	Summary(ctx context.Context, filter ReportFilter) ([]ChannelSummary, error)
}
