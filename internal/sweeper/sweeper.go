// Package sweeper evicts idle per-user state on a fixed interval.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	internalsettings "github.com/walletbot/ingress/internal/settings"
)

// Target is a store that can drop entries idle since before a cutoff.
type Target interface {
	Sweep(ctx context.Context, idleBefore time.Time) (int, error)
}

// Observer receives per-target eviction counts.
type Observer func(kind string, removed int)

// Sweeper removes rate state and sessions idle longer than the retention.
// Accounts are never swept.
type Sweeper struct {
	targets   map[string]Target
	order     []string
	retention time.Duration
	interval  time.Duration
	observe   Observer
	now       func() time.Time
}

// New constructs a Sweeper; zero durations fall back to defaults.
func New(retention, interval time.Duration, observe Observer) *Sweeper {
	if retention <= 0 {
		retention = internalsettings.DefaultRetentionIdle
	}
	if interval <= 0 {
		interval = internalsettings.DefaultRetentionInterval
	}
	return &Sweeper{
		targets:   make(map[string]Target),
		retention: retention,
		interval:  interval,
		observe:   observe,
		now:       time.Now,
	}
}

// Add registers target under kind.
func (s *Sweeper) Add(kind string, target Target) {
	if target == nil {
		return
	}
	if _, exists := s.targets[kind]; !exists {
		s.order = append(s.order, kind)
	}
	s.targets[kind] = target
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Infof("retention sweeper started (retention=%s, interval=%s)", s.retention, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.WithError(err).Warn("retention sweeper: sweep failed")
			}
		}
	}
}

// SweepOnce runs one pass over every target and returns the counts removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (map[string]int, error) {
	cutoff := s.now().Add(-s.retention)
	removed := make(map[string]int, len(s.order))
	var errs []error
	for _, kind := range s.order {
		n, errSweep := s.targets[kind].Sweep(ctx, cutoff)
		if errSweep != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, errSweep))
		}
		removed[kind] = n
		if n > 0 {
			log.WithFields(log.Fields{"kind": kind, "removed": n}).Debug("retention sweeper: evicted idle entries")
		}
		if s.observe != nil {
			s.observe(kind, n)
		}
	}
	return removed, errors.Join(errs...)
}
