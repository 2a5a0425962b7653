package filesource

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	mu       sync.Mutex
	requests []keyworddomain.SyncRequest
}

func (r *recordingService) last() keyworddomain.SyncRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

func (r *recordingService) Snapshot(context.Context) (keyworddomain.Snapshot, error) {
	return nil, nil
}

func (r *recordingService) Sync(_ context.Context, req keyworddomain.SyncRequest) (keyworddomain.SyncResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	counts := make(map[keyworddomain.Category]int, len(req))
	for c, words := range req {
		counts[c] = len(words)
	}
	return keyworddomain.SyncResult{Counts: counts}, nil
}

func TestLoadReadsNamedCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	require.NoError(t, os.WriteFile(path, []byte("opening:\n  - halo\n  - hai kak\nbooking: [booking]\n"), 0o600))

	src := New(path, 0, &recordingService{}, zap.NewNop())
	req, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, keyworddomain.SyncRequest{
		keyworddomain.CategoryOpening: {"halo", "hai kak"},
		keyworddomain.CategoryBooking: {"booking"},
	}, req)
}

func TestLoadLegacyKeywordsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [halo]\n"), 0o600))

	req, err := New(path, 0, &recordingService{}, zap.NewNop()).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"halo"}, req[keyworddomain.CategoryOpening])
}

func TestSyncOnceMissingFileLeavesStoreAlone(t *testing.T) {
	svc := &recordingService{}
	src := New(filepath.Join(t.TempDir(), "absent.yml"), 0, svc, zap.NewNop())
	_, err := src.Load()
	require.NoError(t, err)

	res, err := src.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Counts)
	assert.Empty(t, svc.requests)
}

func TestSyncOncePushesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	require.NoError(t, os.WriteFile(path, []byte("transaction: [transfer, bayar]\n"), 0o600))
	svc := &recordingService{}

	src := New(path, 0, svc, zap.NewNop())
	_, err := src.Load()
	require.NoError(t, err)

	res, err := src.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts[keyworddomain.CategoryTransaction])
	require.Len(t, svc.requests, 1)
}

func TestRunReloadsOnFileChangeAndResyncsFromCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yml")
	require.NoError(t, os.WriteFile(path, []byte("booking: [booking]\n"), 0o600))
	svc := &recordingService{}
	src := New(path, 5*time.Millisecond, svc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		src.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"booking"}, svc.last()[keyworddomain.CategoryBooking])
	}, 2*time.Second, 5*time.Millisecond)

	// Rewrites while the interval keeps resyncing must not race the watcher.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("booking: [booking, reservasi]\n"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"booking", "reservasi"}, svc.last()[keyworddomain.CategoryBooking])
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"booking", "reservasi"}, src.Current()[keyworddomain.CategoryBooking])
}
