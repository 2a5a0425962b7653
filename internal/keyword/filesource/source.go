// Package filesource keeps the keyword store in step with a keywords.yml file.
// The file holds one list per category:
//
//	opening: [halo, hai kak]
//	booking: [booking, reservasi]
//	transaction: [transfer, bayar]
//
// A category absent from the file is left as it is in the store.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"go.uber.org/zap"
)

// Source owns a *viper.Viper that is not safe for concurrent use. Once Run
// starts watching, only viper's watcher goroutine reads it (inside the
// OnConfigChange callback); everything else works from the cached request.
type Source struct {
	path     string
	interval time.Duration
	v        *viper.Viper
	service  keyworddomain.Service
	log      *zap.Logger
	changed  chan struct{}

	mu      sync.RWMutex
	current keyworddomain.SyncRequest
}

func New(path string, interval time.Duration, service keyworddomain.Service, log *zap.Logger) *Source {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")

	return &Source{
		path:     path,
		interval: interval,
		v:        v,
		service:  service,
		log:      log.Named("keyword.filesource"),
		changed:  make(chan struct{}, 1),
	}
}

// Load reads the file and caches the result. A missing file yields an empty
// request so the store keeps whatever it has. Load must not be called once Run
// is watching the file.
func (s *Source) Load() (keyworddomain.SyncRequest, error) {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			s.setCurrent(keyworddomain.SyncRequest{})
			return keyworddomain.SyncRequest{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	req := s.parse()
	s.setCurrent(req)
	return req, nil
}

func (s *Source) parse() keyworddomain.SyncRequest {
	req := make(keyworddomain.SyncRequest, len(keyworddomain.Categories))
	for _, category := range keyworddomain.Categories {
		if !s.v.IsSet(string(category)) {
			continue
		}
		req[category] = s.v.GetStringSlice(string(category))
	}
	if s.v.IsSet(keyworddomain.LegacyKeywordsField) && !s.v.IsSet(string(keyworddomain.CategoryOpening)) {
		req[keyworddomain.CategoryOpening] = s.v.GetStringSlice(keyworddomain.LegacyKeywordsField)
	}
	return req
}

func (s *Source) setCurrent(req keyworddomain.SyncRequest) {
	s.mu.Lock()
	s.current = req
	s.mu.Unlock()
}

// Current returns the last request read from the file.
func (s *Source) Current() keyworddomain.SyncRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SyncOnce pushes every category of the cached request.
func (s *Source) SyncOnce(ctx context.Context) (keyworddomain.SyncResult, error) {
	req := s.Current()
	if len(req) == 0 {
		s.log.Warn("keyword file missing or empty, store left unchanged", zap.String("path", s.path))
		return keyworddomain.SyncResult{}, nil
	}
	return s.service.Sync(ctx, req)
}

// Run loads the file, then syncs at startup, on every file change and every
// interval until ctx is done. The interval resync re-pushes the cached request
// so a flushed Redis is repopulated.
func (s *Source) Run(ctx context.Context) {
	if _, err := s.Load(); err != nil {
		s.log.Error("keyword file load failed", zap.String("path", s.path), zap.Error(err))
	}

	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.setCurrent(s.parse())
		s.log.Info("keyword file reloaded", zap.String("file", e.Name))
		select {
		case s.changed <- struct{}{}:
		default:
		}
	})
	s.v.WatchConfig()

	s.sync(ctx, "startup")

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changed:
			s.sync(ctx, "file_changed")
		case <-tick:
			s.sync(ctx, "interval")
		}
	}
}

func (s *Source) sync(ctx context.Context, trigger string) {
	result, err := s.SyncOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("keyword sync failed", zap.String("trigger", trigger), zap.Error(err))
		}
		return
	}
	for category, n := range result.Counts {
		s.log.Debug("keyword sync",
			zap.String("trigger", trigger),
			zap.String("category", string(category)),
			zap.Int("count", n),
		)
	}
}
