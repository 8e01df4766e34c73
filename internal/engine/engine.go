// Package engine advances active drafts through their phase tables. It is
// driven purely by elapsed wall-clock time compared against stored phase
// timestamps; there is no in-memory timer, so every step is resumable from
// a cold invocation and safe to run repeatedly and overlappingly.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/phases"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

const (
	// PreparationDelay is the inter-turn pause so the next side's timer
	// does not start the instant the previous phase locks.
	PreparationDelay = 1500 * time.Millisecond

	// PoolShuffleDwell is how long a blitz draft sits in poolShuffle
	// before the sweep promotes it to active.
	PoolShuffleDwell = 5 * time.Second
)

// StepResult describes what a single engine step did.
type StepResult struct {
	Applied   bool // a state transition was committed
	Locked    bool // a phase was locked
	Completed bool // the draft reached completed status
}

// Engine is stateless between invocations; all orchestration state lives in
// the draft document.
type Engine struct {
	store store.Store
	clock clockwork.Clock

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(st store.Store, clock clockwork.Clock, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{store: st, clock: clock, rng: rng}
}

// ProcessTimer checks one active draft's turn timer and, if expired,
// applies exactly one transition: force-lock, auto-pick, or (for the fully
// parallel mode) simultaneous completion. Preconditions are re-validated
// inside the transaction, so a concurrent invocation that lost the race
// observes the new state and exits as a no-op.
func (e *Engine) ProcessTimer(ctx context.Context, draftID string) (StepResult, error) {
	var res StepResult
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != models.DraftStatusActive || d.InPreparation {
			return nil // transition already taken or draft moved on
		}

		cfg, ok := phases.ForMode(d.Mode)
		if !ok {
			return fmt.Errorf("unknown draft mode %q", d.Mode)
		}

		now := e.clock.Now()
		start := activeTimerStart(cfg, d)
		if start.IsZero() {
			// Partially written state: stamp a fresh timer and let the
			// next sweep judge expiry.
			stampTimer(cfg, d, now)
			return tx.PutDraft(ctx, d)
		}
		if !start.Expired(now, cfg.TurnDuration) {
			return nil
		}

		if cfg.Simultaneous() {
			e.completeSimultaneous(cfg, d, now)
			res = StepResult{Applied: true, Locked: true, Completed: true}
			return tx.PutDraft(ctx, d)
		}

		phase, ok := cfg.PhaseAt(d.CurrentPhase)
		if !ok {
			return fmt.Errorf("draft %s phase index %d out of range", d.ID, d.CurrentPhase)
		}

		autoPicked := false
		if !d.AwaitingLockConfirmation && d.PhasePicks < phase.Count {
			e.autoPick(cfg, phase, d)
			autoPicked = true
		}

		completed := lockAndAdvance(cfg, d, now, autoPicked)
		res = StepResult{Applied: true, Locked: true, Completed: completed}
		return tx.PutDraft(ctx, d)
	})
	if err != nil {
		return StepResult{}, err
	}
	if res.Applied {
		log.Info().
			Str("draft_id", draftID).
			Bool("completed", res.Completed).
			Msg("phase timer expired, transition applied")
	}
	return res, nil
}

// ProcessPreparation clears the inter-turn preparation flag once the delay
// has elapsed and starts the timer for the now-current side.
func (e *Engine) ProcessPreparation(ctx context.Context, draftID string) (StepResult, error) {
	var res StepResult
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != models.DraftStatusActive || !d.InPreparation {
			return nil
		}

		cfg, ok := phases.ForMode(d.Mode)
		if !ok {
			return fmt.Errorf("unknown draft mode %q", d.Mode)
		}

		now := e.clock.Now()
		if d.PreparationStart.IsZero() {
			d.PreparationStart = timeutil.At(now)
			return tx.PutDraft(ctx, d)
		}
		if !d.PreparationStart.Expired(now, PreparationDelay) {
			return nil
		}

		d.InPreparation = false
		d.PreparationStart = timeutil.Timestamp{}
		stampTimer(cfg, d, now)
		res = StepResult{Applied: true}
		return tx.PutDraft(ctx, d)
	})
	return res, err
}

// PromotePoolShuffle moves a blitz draft from poolShuffle to active once
// the shuffled sub-pools have been visible for the dwell period.
func (e *Engine) PromotePoolShuffle(ctx context.Context, draftID string) (StepResult, error) {
	var res StepResult
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != models.DraftStatusPoolShuffle {
			return nil
		}

		now := e.clock.Now()
		if d.PoolShuffledAt.IsZero() {
			d.PoolShuffledAt = timeutil.At(now)
			return tx.PutDraft(ctx, d)
		}
		if !d.PoolShuffledAt.Expired(now, PoolShuffleDwell) {
			return nil
		}

		d.Status = models.DraftStatusActive
		d.InPreparation = true
		d.PreparationStart = timeutil.At(now)
		res = StepResult{Applied: true}
		return tx.PutDraft(ctx, d)
	})
	return res, err
}

// autoPick fills the remaining required selections for the current side.
// Ban phases are filled with the no-op placeholder, which is recorded in
// the locked-phase history but never enters the real ban list. Pick phases
// draw uniformly from what is still legally available.
func (e *Engine) autoPick(cfg phases.Config, phase phases.Phase, d *models.Draft) {
	remaining := phase.Count - d.PhasePicks
	if remaining <= 0 {
		return
	}

	if phase.IsBanPhase {
		for i := 0; i < remaining; i++ {
			d.PhaseItems = append(d.PhaseItems, phases.NoopBan)
		}
		d.PhasePicks = phase.Count
		return
	}

	avail := phases.Available(cfg, d, phase.Side)
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	for i := 0; i < remaining && len(avail) > 0; i++ {
		var chosen string
		chosen, avail = phases.DrawRandom(e.rng, avail)
		if d.Picks == nil {
			d.Picks = make(map[models.Side][]string)
		}
		d.Picks[phase.Side] = append(d.Picks[phase.Side], chosen)
		d.PhaseItems = append(d.PhaseItems, chosen)
		d.PhasePicks++
	}
}

// completeSimultaneous auto-picks up to the required count independently
// for both sides in the same step and finishes the draft. There is no
// phase advancement in this mode.
func (e *Engine) completeSimultaneous(cfg phases.Config, d *models.Draft, now time.Time) {
	if d.Picks == nil {
		d.Picks = make(map[models.Side][]string)
	}
	for i, phase := range cfg.Phases {
		side := phase.Side
		avail := phases.Available(cfg, d, side)
		e.rngMu.Lock()
		for len(d.Picks[side]) < phase.Count && len(avail) > 0 {
			var chosen string
			chosen, avail = phases.DrawRandom(e.rng, avail)
			d.Picks[side] = append(d.Picks[side], chosen)
		}
		e.rngMu.Unlock()
		d.LockedPhases = append(d.LockedPhases, models.LockedPhase{
			Phase:    i,
			Side:     side,
			Items:    append([]string(nil), d.Picks[side]...),
			AutoPick: true,
			LockedAt: timeutil.At(now),
		})
	}
	finish(d, now)
}

// lockAndAdvance locks the current phase as-is and moves to the next, or
// completes the draft when no phases remain. autoPicked records whether
// the engine filled items; force-locks of human selections are not
// auto-picks in the history. Returns whether the draft completed.
func lockAndAdvance(cfg phases.Config, d *models.Draft, now time.Time, autoPicked bool) bool {
	phase, _ := cfg.PhaseAt(d.CurrentPhase)
	d.LockedPhases = append(d.LockedPhases, models.LockedPhase{
		Phase:    d.CurrentPhase,
		Side:     phase.Side,
		Items:    append([]string(nil), d.PhaseItems...),
		AutoPick: autoPicked,
		LockedAt: timeutil.At(now),
	})
	d.AwaitingLockConfirmation = false
	d.PhaseItems = nil
	d.PhasePicks = 0

	next := d.CurrentPhase + 1
	if next >= len(cfg.Phases) {
		finish(d, now)
		return true
	}

	nextPhase, _ := cfg.PhaseAt(next)
	d.CurrentPhase = next
	d.CurrentSide = nextPhase.Side
	d.InPreparation = true
	d.PreparationStart = timeutil.At(now)
	clearTimers(d)
	return false
}

func finish(d *models.Draft, now time.Time) {
	d.Status = models.DraftStatusCompleted
	d.CompletedAt = timeutil.At(now)
	d.InPreparation = false
	d.PreparationStart = timeutil.Timestamp{}
	clearTimers(d)
}

func activeTimerStart(cfg phases.Config, d *models.Draft) timeutil.Timestamp {
	if cfg.SharedTimer {
		return d.SharedTimerStart
	}
	return d.TimerStart[d.CurrentSide]
}

func stampTimer(cfg phases.Config, d *models.Draft, now time.Time) {
	if cfg.SharedTimer {
		d.SharedTimerStart = timeutil.At(now)
		return
	}
	if d.TimerStart == nil {
		d.TimerStart = make(map[models.Side]timeutil.Timestamp)
	}
	d.TimerStart[d.CurrentSide] = timeutil.At(now)
}

func clearTimers(d *models.Draft) {
	d.TimerStart = nil
	d.SharedTimerStart = timeutil.Timestamp{}
}
