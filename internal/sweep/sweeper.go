// Package sweep drives every draft forward on a polling cadence. The
// sweeper holds no state of its own; each pass reads draft documents,
// hands them to the matching component, and trusts those components'
// transactional preconditions to make overlapping passes harmless.
package sweep

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/assignment"
	"github.com/aurorydraft2026/draftforge/internal/coinflip"
	"github.com/aurorydraft2026/draftforge/internal/engine"
	"github.com/aurorydraft2026/draftforge/internal/events"
	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/settlement"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/verification"
)

const (
	DefaultSweepInterval        = 2 * time.Second
	DefaultVerificationInterval = 30 * time.Second
	DefaultBatchSize            = 50
)

// Report counts what one sweep pass touched, keyed by sub-sweep.
type Report struct {
	TimersProcessed      int `json:"timersProcessed"`
	PreparationsCleared  int `json:"preparationsCleared"`
	PoolShufflesPromoted int `json:"poolShufflesPromoted"`
	CoinFlipsAdvanced    int `json:"coinFlipsAdvanced"`
	AssignmentsRecovered int `json:"assignmentsRecovered"`
	Errors               int `json:"errors"`
}

// VerificationReport counts one verification pass.
type VerificationReport struct {
	Checked bool `json:"-"`
	Drafts  int  `json:"drafts"`
	Settled int  `json:"settled"`
	Errors  int  `json:"errors"`
}

type Config struct {
	SweepInterval        time.Duration
	VerificationInterval time.Duration
	BatchSize            int
}

func (c *Config) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.VerificationInterval <= 0 {
		c.VerificationInterval = DefaultVerificationInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

type Sweeper struct {
	store     store.Store
	clock     clockwork.Clock
	engine    *engine.Engine
	coinFlip  *coinflip.Machine
	finalizer *assignment.Finalizer
	verifier  *verification.Verifier
	settler   *settlement.Settler
	publisher events.Publisher
	cfg       Config
}

func New(
	st store.Store,
	clock clockwork.Clock,
	eng *engine.Engine,
	cf *coinflip.Machine,
	fin *assignment.Finalizer,
	ver *verification.Verifier,
	set *settlement.Settler,
	pub events.Publisher,
	cfg Config,
) *Sweeper {
	cfg.applyDefaults()
	if pub == nil {
		pub = events.Noop{}
	}
	return &Sweeper{
		store:     st,
		clock:     clock,
		engine:    eng,
		coinFlip:  cf,
		finalizer: fin,
		verifier:  ver,
		settler:   set,
		publisher: pub,
		cfg:       cfg,
	}
}

// RunSweep performs one full pass over every non-terminal draft state.
// Per-draft failures are counted and logged; the pass always finishes.
func (s *Sweeper) RunSweep(ctx context.Context) Report {
	var r Report
	s.sweepActiveTimers(ctx, &r)
	s.sweepPoolShuffles(ctx, &r)
	s.sweepCoinFlips(ctx, &r)
	s.sweepStuckAssignments(ctx, &r)
	return r
}

func (s *Sweeper) sweepActiveTimers(ctx context.Context, r *Report) {
	drafts, err := s.store.DraftsByStatus(ctx, models.DraftStatusActive, s.cfg.BatchSize)
	if err != nil {
		r.Errors++
		log.Error().Err(err).Msg("failed to list active drafts")
		return
	}
	for _, d := range drafts {
		if d.InPreparation {
			res, err := s.engine.ProcessPreparation(ctx, d.ID)
			if err != nil {
				r.Errors++
				log.Error().Err(err).Str("draft_id", d.ID).Msg("preparation step failed")
				continue
			}
			if res.Applied {
				r.PreparationsCleared++
			}
			continue
		}
		res, err := s.engine.ProcessTimer(ctx, d.ID)
		if err != nil {
			r.Errors++
			log.Error().Err(err).Str("draft_id", d.ID).Msg("timer step failed")
			continue
		}
		if res.Applied {
			r.TimersProcessed++
		}
		if res.Locked {
			events.Emit(ctx, s.publisher, events.TypePhaseLocked, d.ID, nil)
		}
		if res.Completed {
			events.Emit(ctx, s.publisher, events.TypeDraftCompleted, d.ID, nil)
		}
	}
}

func (s *Sweeper) sweepPoolShuffles(ctx context.Context, r *Report) {
	drafts, err := s.store.DraftsByStatus(ctx, models.DraftStatusPoolShuffle, s.cfg.BatchSize)
	if err != nil {
		r.Errors++
		log.Error().Err(err).Msg("failed to list poolShuffle drafts")
		return
	}
	for _, d := range drafts {
		res, err := s.engine.PromotePoolShuffle(ctx, d.ID)
		if err != nil {
			r.Errors++
			log.Error().Err(err).Str("draft_id", d.ID).Msg("pool shuffle promotion failed")
			continue
		}
		if res.Applied {
			r.PoolShufflesPromoted++
		}
	}
}

func (s *Sweeper) sweepCoinFlips(ctx context.Context, r *Report) {
	drafts, err := s.store.DraftsByStatus(ctx, models.DraftStatusCoinFlip, s.cfg.BatchSize)
	if err != nil {
		r.Errors++
		log.Error().Err(err).Msg("failed to list coinFlip drafts")
		return
	}
	for _, d := range drafts {
		res, err := s.coinFlip.Process(ctx, d.ID)
		if err != nil {
			r.Errors++
			log.Error().Err(err).Str("draft_id", d.ID).Msg("coin flip step failed")
			continue
		}
		if res.Applied {
			r.CoinFlipsAdvanced++
		}
		if res.Resolved {
			events.Emit(ctx, s.publisher, events.TypeCoinFlipResolved, d.ID, nil)
		}
	}
}

func (s *Sweeper) sweepStuckAssignments(ctx context.Context, r *Report) {
	drafts, err := s.store.DraftsByStatus(ctx, models.DraftStatusAssignment, s.cfg.BatchSize)
	if err != nil {
		r.Errors++
		log.Error().Err(err).Msg("failed to list assignment drafts")
		return
	}
	for _, d := range drafts {
		recovered, err := s.finalizer.ProcessStuck(ctx, d.ID)
		if err != nil {
			r.Errors++
			log.Error().Err(err).Str("draft_id", d.ID).Msg("stuck assignment recovery failed")
			continue
		}
		if recovered {
			r.AssignmentsRecovered++
			events.Emit(ctx, s.publisher, events.TypeAssignmentFinalized, d.ID, nil)
		}
	}
}

// RunVerificationSweep checks completed drafts against the results
// service and settles the ones whose verification just finished.
func (s *Sweeper) RunVerificationSweep(ctx context.Context) VerificationReport {
	var r VerificationReport
	drafts, err := s.store.DraftsByStatus(ctx, models.DraftStatusCompleted, s.cfg.BatchSize)
	if err != nil {
		r.Errors++
		log.Error().Err(err).Msg("failed to list completed drafts")
		return r
	}
	for _, d := range drafts {
		if d.PayoutComplete {
			continue
		}
		r.Drafts++

		done := d.VerificationStatus == models.VerificationComplete
		if !done {
			done, err = s.verifier.ProcessDraft(ctx, d.ID)
			if err != nil {
				r.Errors++
				log.Error().Err(err).Str("draft_id", d.ID).Msg("verification failed")
				continue
			}
			if done {
				events.Emit(ctx, s.publisher, events.TypeDraftVerified, d.ID, nil)
			}
		}
		if !done {
			continue
		}

		out, err := s.settler.SettleDraft(ctx, d.ID, settlement.MethodAuto)
		if err != nil {
			r.Errors++
			log.Error().Err(err).Str("draft_id", d.ID).Msg("settlement failed")
			continue
		}
		if out.Applied {
			r.Settled++
			if len(out.Refunds) > 0 {
				events.Emit(ctx, s.publisher, events.TypeRefundIssued, d.ID, out.Refunds)
			} else {
				events.Emit(ctx, s.publisher, events.TypePayoutCompleted, d.ID, map[string]any{
					"winner": out.Winner,
					"amount": out.Amount,
				})
			}
		}
	}
	return r
}

// Run drives both sweeps on their tickers until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	sweepTicker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer sweepTicker.Stop()
	verifyTicker := s.clock.NewTicker(s.cfg.VerificationInterval)
	defer verifyTicker.Stop()

	log.Info().
		Dur("sweep_interval", s.cfg.SweepInterval).
		Dur("verification_interval", s.cfg.VerificationInterval).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-sweepTicker.Chan():
			s.RunSweep(ctx)
		case <-verifyTicker.Chan():
			s.RunVerificationSweep(ctx)
		}
	}
}
