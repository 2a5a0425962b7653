package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	funnelrepo "github.com/smallbiznis/sparks/internal/funnel/repository"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
	roomrepo "github.com/smallbiznis/sparks/internal/room/repository"
	"github.com/smallbiznis/sparks/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type staticKeywords struct {
	snap keyworddomain.Snapshot
}

func (s *staticKeywords) Snapshot(context.Context) (keyworddomain.Snapshot, error) {
	return s.snap, nil
}

func (s *staticKeywords) Sync(context.Context, keyworddomain.SyncRequest) (keyworddomain.SyncResult, error) {
	return keyworddomain.SyncResult{}, nil
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	rooms    roomdomain.Repository
	repo     funneldomain.Repository
	keywords *staticKeywords
	svc      funneldomain.Service
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	db := dbtest.Open(t, &roomdomain.Room{}, &roomdomain.Message{}, &funneldomain.Record{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		db:    db,
		node:  node,
		clock: clock.NewFakeClock(time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)),
		rooms: roomrepo.Provide(),
		repo:  funnelrepo.Provide(),
		keywords: &staticKeywords{snap: keyworddomain.Snapshot{
			keyworddomain.CategoryOpening:     keyworddomain.NewSet([]string{"halo"}),
			keyworddomain.CategoryBooking:     keyworddomain.NewSet([]string{"booking"}),
			keyworddomain.CategoryTransaction: keyworddomain.NewSet([]string{"transfer"}),
		}},
	}

	cfg := config.Config{Funnel: config.FunnelConfig{Timezone: "UTC", BatchSize: batchSize}}
	svc, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    f.clock,
		Config:   cfg,
		Rooms:    f.rooms,
		Repo:     f.repo,
		Keywords: f.keywords,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) room(t *testing.T, key string, contents ...string) *roomdomain.Room {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2025, 9, 20, 9, 0, 0, 0, time.UTC)
	room, err := f.rooms.UpsertRoom(ctx, f.db, &roomdomain.Room{
		ID: f.node.Generate(), RoomKey: key, Channel: "whatsapp", RawMeta: datatypes.JSON(`{}`),
		CreatedAt: at, LastActivityAt: at,
	}, at)
	require.NoError(t, err)
	for i, c := range contents {
		ts := at.Add(time.Duration(i) * 24 * time.Hour)
		_, err := f.rooms.InsertMessage(ctx, f.db, &roomdomain.Message{
			ID: f.node.Generate(), RoomID: room.ID, SenderType: roomdomain.SenderCustomer,
			Content: c, RawPayload: datatypes.JSON(`{}`), CreatedAt: ts, IngestedAt: ts,
		})
		require.NoError(t, err)
	}
	return room
}

func TestRecomputeUpsertsOneRecordPerRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	r1 := f.room(t, "r-1", "halo kak", "saya mau booking 2025-10-01", "sudah transfer 1.500.000")
	f.room(t, "r-2", "info")
	f.room(t, "r-3")

	res, err := f.svc.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, funneldomain.PassResult{Rooms: 3, Classified: 2, Empty: 1}, res)

	first, err := f.repo.FindByRoomID(ctx, f.db, r1.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "r-1", first.RoomKey)
	assert.Equal(t, "halo", *first.OpeningKeyword)
	assert.Equal(t, 1500000.0, *first.TransactionValue)
	assert.True(t, first.BookingDate.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))

	f.clock.Advance(time.Hour)
	_, err = f.svc.Recompute(ctx)
	require.NoError(t, err)

	second, err := f.repo.FindByRoomID(ctx, f.db, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, *first.OpeningKeyword, *second.OpeningKeyword)
	assert.True(t, first.LeadsDate.Equal(*second.LeadsDate))

	var count int64
	require.NoError(t, f.db.Model(&funneldomain.Record{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestRecomputeOverwritesWhenKeywordsChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	r := f.room(t, "r-1", "halo", "booking ya", "transfer 10.000")

	_, err := f.svc.Recompute(ctx)
	require.NoError(t, err)

	f.keywords.snap[keyworddomain.CategoryBooking] = keyworddomain.NewSet([]string{"reservasi"})
	_, err = f.svc.Recompute(ctx)
	require.NoError(t, err)

	rec, err := f.repo.FindByRoomID(ctx, f.db, r.ID)
	require.NoError(t, err)
	assert.Nil(t, rec.BookingDate)
	assert.NotNil(t, rec.TransactionDate)
	assert.NotNil(t, rec.LeadsDate)
}

func TestRecomputeSkipsFailingRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	bad := f.room(t, "bad", "halo")
	good := f.room(t, "good", "halo")

	require.NoError(t, f.db.Model(&roomdomain.Message{}).
		Where("room_id = ?", bad.ID).
		Update("raw_payload", datatypes.JSON(`"not an object"`)).Error)

	res, err := f.svc.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Classified)

	rec, err := f.repo.FindByRoomID(ctx, f.db, good.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	missing, err := f.repo.FindByRoomID(ctx, f.db, bad.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReportValidatesDateRange(t *testing.T) {
	f := newFixture(t, 10)
	start := time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Report(context.Background(), funneldomain.ReportFilter{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, funneldomain.ErrInvalidDateRange)
	_, err = f.svc.Summary(context.Background(), funneldomain.ReportFilter{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, funneldomain.ErrInvalidDateRange)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), Config: config.Config{Funnel: config.FunnelConfig{Timezone: "Mars/Olympus"}}})
	assert.Error(t, err)
}
