package worker

import (
	"time"

	"github.com/smallbiznis/sparks/internal/config"
)

// Config controls the normalization worker loop. ClaimMinIdle should stay
// above EntryTimeout so in-flight entries are never claimed by a peer.
type Config struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int
	Block        time.Duration
	Concurrency  int
	ClaimMinIdle time.Duration
	ErrorBackoff time.Duration
	EntryTimeout time.Duration

	// MaxDeliveries caps attempts per entry; the last failing attempt acks it.
	MaxDeliveries int
}

func DefaultConfig() Config {
	return Config{
		Stream:        "incoming:messages",
		Group:         "workers",
		Consumer:      "worker-1",
		BatchSize:     10,
		Block:         5 * time.Second,
		Concurrency:   1,
		ClaimMinIdle:  time.Minute,
		ErrorBackoff:  time.Second,
		EntryTimeout:  15 * time.Second,
		MaxDeliveries: 5,
	}
}

func FromAppConfig(cfg config.Config) Config {
	return Config{
		Stream:        cfg.Stream.Key,
		Group:         cfg.Stream.Group,
		Consumer:      cfg.Worker.Consumer,
		BatchSize:     cfg.Worker.BatchSize,
		Block:         cfg.Worker.Block,
		Concurrency:   cfg.Worker.Concurrency,
		ClaimMinIdle:  cfg.Worker.ClaimMinIdle,
		ErrorBackoff:  cfg.Worker.ErrorBackoff,
		EntryTimeout:  cfg.Worker.EntryTimeout,
		MaxDeliveries: cfg.Worker.MaxDeliveries,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Stream == "" {
		c.Stream = defaults.Stream
	}
	if c.Group == "" {
		c.Group = defaults.Group
	}
	if c.Consumer == "" {
		c.Consumer = defaults.Consumer
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Block <= 0 {
		c.Block = defaults.Block
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = defaults.ClaimMinIdle
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = defaults.ErrorBackoff
	}
	if c.EntryTimeout <= 0 {
		c.EntryTimeout = defaults.EntryTimeout
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = defaults.MaxDeliveries
	}
	return c
}
