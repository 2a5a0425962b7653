package service

import (
	"context"
	"errors"
	"testing"

	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) Members(ctx context.Context, category keyworddomain.Category) ([]string, error) {
	args := m.Called(ctx, category)
	res, _ := args.Get(0).([]string)
	return res, args.Error(1)
}

func (m *storeMock) Replace(ctx context.Context, category keyworddomain.Category, words []string) error {
	args := m.Called(ctx, category, words)
	return args.Error(0)
}

func newService(store keyworddomain.Store) keyworddomain.Service {
	return New(Params{Log: zap.NewNop(), Store: store})
}

func TestSnapshotDegradesFailingCategory(t *testing.T) {
	ctx := context.Background()
	store := new(storeMock)
	store.On("Members", ctx, keyworddomain.CategoryOpening).Return([]string{"Halo", "hai"}, nil)
	store.On("Members", ctx, keyworddomain.CategoryBooking).Return(nil, errors.New("WRONGTYPE"))
	store.On("Members", ctx, keyworddomain.CategoryTransaction).Return([]string{"transfer"}, nil)

	snap, err := newService(store).Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, keyworddomain.Set{"halo", "hai"}, snap.Get(keyworddomain.CategoryOpening))
	assert.Empty(t, snap.Get(keyworddomain.CategoryBooking))
	assert.Equal(t, keyworddomain.Set{"transfer"}, snap.Get(keyworddomain.CategoryTransaction))
}

func TestSyncReplacesNamedCategoriesOnly(t *testing.T) {
	ctx := context.Background()
	store := new(storeMock)
	store.On("Replace", ctx, keyworddomain.CategoryBooking, []string{"reservasi", "booking"}).Return(nil)

	res, err := newService(store).Sync(ctx, keyworddomain.SyncRequest{
		keyworddomain.CategoryBooking: {"Booking", "booking ", "", "reservasi"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[keyworddomain.Category]int{keyworddomain.CategoryBooking: 2}, res.Counts)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Replace", ctx, keyworddomain.CategoryOpening, mock.Anything)
}

func TestSyncRejectsUnknownCategory(t *testing.T) {
	store := new(storeMock)
	_, err := newService(store).Sync(context.Background(), keyworddomain.SyncRequest{"refund": {"x"}})
	assert.ErrorIs(t, err, keyworddomain.ErrInvalidCategory)
	store.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)

	_, err = newService(store).Sync(context.Background(), nil)
	assert.ErrorIs(t, err, keyworddomain.ErrEmptyRequest)
}
