package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	"github.com/smallbiznis/sparks/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

type repo struct{}

func Provide() funneldomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rec *funneldomain.Record) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"leads_date",
				"channel",
				"phone",
				"booking_date",
				"transaction_date",
				"transaction_value",
				"opening_keyword",
				"updated_at",
			}),
		}).
		Create(rec).Error
}

func (r *repo) FindByRoomID(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*funneldomain.Record, error) {
	var rec funneldomain.Record
	err := db.WithContext(ctx).
		Table("funnel").
		Select("funnel.*, rooms.room_id AS room_key").
		Joins("JOIN rooms ON rooms.id = funnel.room_id").
		Where("funnel.room_id = ?", roomID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records with a lead, newest leads_date first. Rows without a
// lead date have no place in the keyset order and are left out.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter funneldomain.ReportFilter) (funneldomain.ReportPage, error) {
	limit := pagination.Limit(filter.PageSize)

	q := applyFilter(db.WithContext(ctx).Table("funnel"), filter).
		Select("funnel.*, rooms.room_id AS room_key").
		Joins("JOIN rooms ON rooms.id = funnel.room_id").
		Where("funnel.leads_date IS NOT NULL")

	if filter.PageToken != "" {
		cursor, err := pagination.DecodeCursor(filter.PageToken)
		if err != nil {
			return funneldomain.ReportPage{}, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return funneldomain.ReportPage{}, pagination.ErrInvalidPageToken
		}
		leads, err := time.Parse(dateLayout, cursor.SortKey)
		if err != nil {
			return funneldomain.ReportPage{}, pagination.ErrInvalidPageToken
		}
		q = q.Where("(funnel.leads_date < ? OR (funnel.leads_date = ? AND funnel.id < ?))", leads, leads, id)
	}

	var rows []funneldomain.Record
	err := q.Order("funnel.leads_date DESC").
		Order("funnel.id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return funneldomain.ReportPage{}, err
	}

	page, info, err := pagination.BuildCursorPageInfo(rows, limit, func(rec funneldomain.Record) pagination.Cursor {
		return pagination.Cursor{
			ID:      rec.ID.String(),
			SortKey: rec.LeadsDate.UTC().Format(dateLayout),
		}
	})
	if err != nil {
		return funneldomain.ReportPage{}, err
	}
	return funneldomain.ReportPage{Records: page, NextPageToken: info.NextPageToken}, nil
}

func (r *repo) Summary(ctx context.Context, db *gorm.DB, filter funneldomain.ReportFilter) ([]funneldomain.ChannelSummary, error) {
	var out []funneldomain.ChannelSummary
	err := applyFilter(db.WithContext(ctx).Table("funnel"), filter).
		Select(`funnel.channel AS channel,
			COUNT(funnel.leads_date) AS leads_count,
			COUNT(funnel.booking_date) AS bookings_count,
			COUNT(funnel.transaction_date) AS transactions_count,
			COALESCE(SUM(funnel.transaction_value), 0) AS transaction_value_sum`).
		Group("funnel.channel").
		Order("funnel.channel ASC").
		Scan(&out).Error
	return out, err
}

func applyFilter(q *gorm.DB, filter funneldomain.ReportFilter) *gorm.DB {
	if filter.StartDate != nil {
		q = q.Where("funnel.leads_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("funnel.leads_date <= ?", *filter.EndDate)
	}
	if filter.Channel != "" {
		q = q.Where("funnel.channel = ?", filter.Channel)
	}
	return q
}
