// Package decay computes time-decayed memory strength.
//
// Strength follows a single-level exponential curve:
//
//	current = initial * exp(-rate * hours_since_review_or_creation)
//
// Elapsed time stays a plain numeric duration throughout; calendar
// formatting belongs to the display layer. Strength is computed in Go
// rather than SQL because modernc.org/sqlite lacks exp().
package decay

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lazypower/recall/internal/store"
)

// Strength returns the decayed strength of a memory at the given instant.
// Monotonically decreasing in elapsed time for rate > 0; elapsed time below
// zero (clock skew) is treated as zero, so the result never exceeds initial.
func Strength(initial, rate float64, since, now time.Time) float64 {
	hours := now.Sub(since).Hours()
	if hours < 0 {
		hours = 0
	}
	return initial * math.Exp(-rate*hours)
}

// MemoryStrength returns the decayed strength of m at the given instant,
// measured from its last review (or creation, if never reviewed).
func MemoryStrength(m *store.Memory, now time.Time) float64 {
	ref := time.UnixMilli(m.ReviewedOrCreated())
	return Strength(m.InitialStrength, m.DecayRate, ref, now)
}

// Engine runs batch strength updates and serves the review queue.
type Engine struct {
	DB     *store.DB
	log    zerolog.Logger
	stopCh chan struct{}
}

// New creates a decay engine over the given store.
func New(db *store.DB, log zerolog.Logger) *Engine {
	return &Engine{
		DB:     db,
		log:    log.With().Str("component", "decay").Logger(),
		stopCh: make(chan struct{}),
	}
}

// UpdateAllStrengths recomputes and persists current_strength for every
// memory. A batch job; reads never trigger it. Returns how many rows changed.
func (e *Engine) UpdateAllStrengths(now time.Time) (int, error) {
	mems, err := e.DB.AllMemories()
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range mems {
		m := &mems[i]
		strength := MemoryStrength(m, now)
		if strength == m.CurrentStrength {
			continue
		}
		if err := e.DB.SaveCurrentStrength(m.ID, strength); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// NeedingReview returns memories whose strength at the given instant is below
// threshold, weakest first. Strength is recomputed live; the cached column is
// not trusted here.
func (e *Engine) NeedingReview(threshold float64, now time.Time) ([]store.Memory, error) {
	mems, err := e.DB.AllMemories()
	if err != nil {
		return nil, err
	}

	var due []store.Memory
	for i := range mems {
		s := MemoryStrength(&mems[i], now)
		if s < threshold {
			mems[i].CurrentStrength = s
			due = append(due, mems[i])
		}
	}
	// Weakest first
	sort.Slice(due, func(i, j int) bool {
		return due[i].CurrentStrength < due[j].CurrentStrength
	})
	return due, nil
}

// StartDecayTimer runs a batch update at startup and then daily.
func (e *Engine) StartDecayTimer() {
	if updated, err := e.UpdateAllStrengths(time.Now()); err != nil {
		e.log.Error().Err(err).Msg("decay update failed")
	} else if updated > 0 {
		e.log.Info().Int("updated", updated).Msg("decay update")
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if updated, err := e.UpdateAllStrengths(time.Now()); err != nil {
					e.log.Error().Err(err).Msg("decay update failed")
				} else if updated > 0 {
					e.log.Info().Int("updated", updated).Msg("decay update")
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutine.
func (e *Engine) Stop() {
	close(e.stopCh)
}
