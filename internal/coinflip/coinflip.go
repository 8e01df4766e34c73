// Package coinflip drives the randomized first-pick resolution: a fixed
// sequence of timed sub-phases with no branching except at turnChoice.
// Each sub-phase stores its own phaseChangedAt on the document, so the
// machine resumes from any cold invocation.
package coinflip

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// Dwell times for each sub-phase.
const (
	SpinDwell       = 5 * time.Second
	ResultDwell     = 4 * time.Second
	TurnChoiceLimit = 120 * time.Second
	DoneDwell       = 5 * time.Second
)

// Assigner converts a resolved coin flip into the prepared assignment
// state. The machine calls it inside its own transaction when the done
// dwell elapses.
type Assigner interface {
	Prepare(ctx context.Context, d *models.Draft) error
}

// StepResult describes what one machine step did.
type StepResult struct {
	Applied  bool
	Resolved bool // the draft moved on to assignment
}

// Machine advances coin-flip sub-state for drafts in coinFlip status.
type Machine struct {
	store    store.Store
	clock    clockwork.Clock
	assigner Assigner

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(st store.Store, clock clockwork.Clock, rng *rand.Rand, assigner Assigner) *Machine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Machine{store: st, clock: clock, rng: rng, assigner: assigner}
}

// Process advances one draft's coin flip by at most one sub-phase.
func (m *Machine) Process(ctx context.Context, draftID string) (StepResult, error) {
	var res StepResult
	err := m.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != models.DraftStatusCoinFlip {
			return nil
		}

		now := m.clock.Now()
		if d.CoinFlip == nil {
			// Draft just entered coinFlip status with no sub-state yet.
			d.CoinFlip = &models.CoinFlip{
				Phase:          models.CoinFlipSpinning,
				PhaseChangedAt: timeutil.At(now),
			}
			return tx.PutDraft(ctx, d)
		}

		cf := d.CoinFlip
		if cf.PhaseChangedAt.IsZero() {
			// Self-heal partially written state; judge the dwell next sweep.
			cf.PhaseChangedAt = timeutil.At(now)
			return tx.PutDraft(ctx, d)
		}

		switch cf.Phase {
		case models.CoinFlipSpinning:
			if !cf.PhaseChangedAt.Expired(now, SpinDwell) {
				return nil
			}
			m.rngMu.Lock()
			if m.rng.Intn(2) == 0 {
				cf.WinnerSide = models.SideA
			} else {
				cf.WinnerSide = models.SideB
			}
			m.rngMu.Unlock()
			advance(cf, models.CoinFlipResult, now)
			res = StepResult{Applied: true}

		case models.CoinFlipResult:
			if !cf.PhaseChangedAt.Expired(now, ResultDwell) {
				return nil
			}
			advance(cf, models.CoinFlipTurnChoice, now)
			res = StepResult{Applied: true}

		case models.CoinFlipTurnChoice:
			if cf.WinnerTurnChoice != "" {
				// An external actor already made the choice and is expected
				// to move the phase; treat a lingering turnChoice phase
				// like the timeout case so the draft cannot stall.
				advance(cf, models.CoinFlipDone, now)
				res = StepResult{Applied: true}
				break
			}
			if !cf.PhaseChangedAt.Expired(now, TurnChoiceLimit) {
				return nil
			}
			cf.WinnerTurnChoice = models.TurnChoiceFirst
			advance(cf, models.CoinFlipDone, now)
			res = StepResult{Applied: true}

		case models.CoinFlipDone:
			if !cf.PhaseChangedAt.Expired(now, DoneDwell) {
				return nil
			}
			if err := m.assigner.Prepare(ctx, d); err != nil {
				return fmt.Errorf("failed to prepare assignment: %w", err)
			}
			res = StepResult{Applied: true, Resolved: true}

		default:
			return fmt.Errorf("draft %s has unknown coin-flip phase %q", d.ID, cf.Phase)
		}

		return tx.PutDraft(ctx, d)
	})
	if err != nil {
		return StepResult{}, err
	}
	if res.Resolved {
		log.Info().Str("draft_id", draftID).Msg("coin flip resolved, assignment prepared")
	}
	return res, nil
}

func advance(cf *models.CoinFlip, phase models.CoinFlipPhase, now time.Time) {
	cf.Phase = phase
	cf.PhaseChangedAt = timeutil.At(now)
}
