package app

import (
	"context"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Janitor evicts rooms that stayed empty past their grace period.
type Janitor struct {
	Orch     *Orchestrator
	Interval time.Duration
	// Grace applies to rooms whose last member left.
	Grace time.Duration
	// Unused applies to rooms created but never joined.
	Unused time.Duration
}

// Sweep evicts every expired room and returns the evicted codes.
func (j *Janitor) Sweep(now time.Time) []domain.RoomCode {
	o := j.Orch
	o.mu.Lock()
	defer o.mu.Unlock()

	var evicted []domain.RoomCode
	for _, code := range o.Rooms.Expired(now, j.Grace, j.Unused) {
		if !o.Rooms.Evict(code) {
			continue
		}
		o.Games.Close(code)
		o.Presence.Forget(code)
		evicted = append(evicted, code)
	}
	if len(evicted) > 0 {
		log.Info().Str("module", "app.janitor").Int("evicted", len(evicted)).Msg("sweep done")
	}
	return evicted
}

// Run sweeps on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.janitor").Msg("janitor stopped")
			return nil
		case now := <-t.C:
			j.Sweep(now)
		}
	}
}
