// Package lockout tracks consecutive failed wallet unlocks and blocks further
// attempts once a threshold is reached.
//
// Counters live behind Store so several service instances can share them.
// A saturated counter blocks until Window has elapsed since the last failure;
// the counter is then cleared by the next Check rather than by a sweeper.
package lockout

import (
	"context"
	"fmt"
	"time"

	"attesto/pkg/requestcontext"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 30 * time.Minute
)

// Record is the failure state for one key.
type Record struct {
	Failures      int
	LastFailureAt time.Time
}

// Store is the shared counter capability. Get returns (nil, nil) for an
// unknown key. RecordFailure must increment atomically and keep the record
// for at least ttl.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) (*Record, error)
	Clear(ctx context.Context, key string) error
}

// Config is the lockout policy.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Status is the outcome of Check.
type Status struct {
	Blocked  bool
	Failures int
	UnlockAt time.Time
}

// Tracker applies Config over a Store.
type Tracker struct {
	store Store
	cfg   Config
}

func NewTracker(store Store, cfg Config) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Tracker{store: store, cfg: cfg}, nil
}

// Config returns the effective policy.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Check reports whether key is blocked. A record older than the window is
// cleared as a side effect.
func (t *Tracker) Check(ctx context.Context, key string) (Status, error) {
	rec, err := t.store.Get(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("get lockout record: %w", err)
	}
	if rec == nil {
		return Status{}, nil
	}
	unlockAt := rec.LastFailureAt.Add(t.cfg.Window)
	if !requestcontext.Now(ctx).Before(unlockAt) {
		if err := t.store.Clear(ctx, key); err != nil {
			return Status{}, fmt.Errorf("clear lockout record: %w", err)
		}
		return Status{}, nil
	}
	if rec.Failures >= t.cfg.MaxAttempts {
		return Status{Blocked: true, Failures: rec.Failures, UnlockAt: unlockAt}, nil
	}
	return Status{Failures: rec.Failures}, nil
}

// RecordFailure counts a failed attempt. The returned status is blocked when
// this failure saturated the counter.
func (t *Tracker) RecordFailure(ctx context.Context, key string) (Status, error) {
	now := requestcontext.Now(ctx)
	rec, err := t.store.RecordFailure(ctx, key, now, t.cfg.Window)
	if err != nil {
		return Status{}, fmt.Errorf("record unlock failure: %w", err)
	}
	st := Status{Failures: rec.Failures}
	if rec.Failures >= t.cfg.MaxAttempts {
		st.Blocked = true
		st.UnlockAt = rec.LastFailureAt.Add(t.cfg.Window)
	}
	return st, nil
}

// Reset clears the counter after a successful unlock.
func (t *Tracker) Reset(ctx context.Context, key string) error {
	if err := t.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}
