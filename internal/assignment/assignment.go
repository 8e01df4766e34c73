// Package assignment converts a resolved coin flip into the concrete
// roster and turn-order state that seeds the phase state machine.
package assignment

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

// FinalizeGrace is how long a prepared assignment waits for an external
// finalize trigger before the sweep performs it.
const FinalizeGrace = 15 * time.Second

const battleCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const battleCodeLen = 9

// ProfileResolver looks up account profiles for display. Resolution is
// best-effort: a missing profile still participates, keyed by identifier.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (*models.Profile, error)
}

// NoProfiles is a resolver that never finds a profile.
type NoProfiles struct{}

func (NoProfiles) Resolve(ctx context.Context, userID string) (*models.Profile, error) {
	return nil, nil
}

// Finalizer performs the two assignment steps: Prepare (invoked by the
// coin-flip machine) and Finalize (human-triggered, or run by the sweep
// after the grace period).
type Finalizer struct {
	store    store.Store
	clock    clockwork.Clock
	profiles ProfileResolver

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(st store.Store, clock clockwork.Clock, rng *rand.Rand, profiles ProfileResolver) *Finalizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if profiles == nil {
		profiles = NoProfiles{}
	}
	return &Finalizer{store: st, clock: clock, rng: rng, profiles: profiles}
}

// Prepare resolves which pre-assigned roster picks first, writes the
// flattened assignment list, and moves the draft to assignment status.
// It mutates d in the caller's transaction.
func (f *Finalizer) Prepare(ctx context.Context, d *models.Draft) error {
	cf := d.CoinFlip
	if cf == nil || cf.WinnerSide == "" {
		return fmt.Errorf("draft %s has no resolved coin flip", d.ID)
	}

	firstPick := cf.WinnerSide
	if cf.WinnerTurnChoice == models.TurnChoiceSecond {
		firstPick = cf.WinnerSide.Opponent()
	}

	// The roster that picks first becomes Team A; remember which original
	// roster that was for downstream display.
	d.TeamAOrigin = firstPick

	d.FinalAssignments = nil
	d.AssignmentLeaders = make(map[string]string)
	for _, assign := range []struct {
		team   models.Side
		origin models.Side
	}{
		{models.SideA, firstPick},
		{models.SideB, firstPick.Opponent()},
	} {
		roster := d.Rosters[assign.origin]
		for i, userID := range roster {
			member := models.AssignedMember{
				UserID: userID,
				Team:   assign.team,
				Leader: i == 0,
			}
			if p, err := f.profiles.Resolve(ctx, userID); err == nil && p != nil {
				member.DisplayName = p.DisplayName
			}
			d.FinalAssignments = append(d.FinalAssignments, member)
		}
		if len(roster) > 0 {
			d.AssignmentLeaders[teamKey(assign.team)] = roster[0]
		}
	}

	d.Status = models.DraftStatusAssignment
	d.AssignmentPreparedAt = timeutil.At(f.clock.Now())
	return nil
}

// ProcessStuck finalizes a prepared assignment that received no external
// trigger within the grace period.
func (f *Finalizer) ProcessStuck(ctx context.Context, draftID string) (bool, error) {
	var applied bool
	err := f.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != models.DraftStatusAssignment {
			return nil
		}

		now := f.clock.Now()
		if d.AssignmentPreparedAt.IsZero() {
			d.AssignmentPreparedAt = timeutil.At(now)
			return tx.PutDraft(ctx, d)
		}
		if !d.AssignmentPreparedAt.Expired(now, FinalizeGrace) {
			return nil
		}

		if err := f.Finalize(d); err != nil {
			return err
		}
		applied = true
		return tx.PutDraft(ctx, d)
	})
	if applied {
		log.Info().Str("draft_id", draftID).Msg("stuck assignment finalized by sweep")
	}
	return applied, err
}

// Finalize seeds turn order, assigns side colors, generates battle
// correlation codes, and (for the split-pool mode) shuffles the shared pool
// into two disjoint sub-pools. Mutates d in the caller's transaction.
func (f *Finalizer) Finalize(d *models.Draft) error {
	cfg, ok := phases.ForMode(d.Mode)
	if !ok {
		return fmt.Errorf("unknown draft mode %q", d.Mode)
	}

	now := f.clock.Now()

	d.Rosters = nil
	d.CurrentPhase = 0
	d.PhasePicks = 0
	d.PhaseItems = nil
	if first, ok := cfg.PhaseAt(0); ok {
		d.CurrentSide = first.Side
	}

	// Side colors track which original roster became Team A.
	if d.TeamAOrigin == models.SideB {
		d.SideColors = map[models.Side]string{models.SideA: "crimson", models.SideB: "azure"}
	} else {
		d.SideColors = map[models.Side]string{models.SideA: "azure", models.SideB: "crimson"}
	}

	// Leaders was written alongside the original rosters and is still keyed
	// by roster side. Everything after this point (match players, overall
	// winner, settlement) is keyed by team side, so re-key it here.
	if len(d.Leaders) > 0 {
		d.Leaders = map[models.Side]string{
			models.SideA: d.Leaders[d.TeamAOrigin],
			models.SideB: d.Leaders[d.TeamAOrigin.Opponent()],
		}
	}

	f.assignBattleCodes(d)

	d.CoinFlip = nil

	if cfg.SplitPool {
		pool := append([]string(nil), d.Pool...)
		f.rngMu.Lock()
		phases.Shuffle(f.rng, pool)
		f.rngMu.Unlock()
		n := cfg.SubPoolSize
		if len(pool) < 2*n {
			return fmt.Errorf("draft %s pool has %d items, need %d", d.ID, len(pool), 2*n)
		}
		d.SubPools = map[models.Side][]string{
			models.SideA: pool[:n],
			models.SideB: pool[n : 2*n],
		}
		d.Status = models.DraftStatusPoolShuffle
		d.PoolShuffledAt = timeutil.At(now)
		return nil
	}

	d.Status = models.DraftStatusActive
	d.InPreparation = true
	d.PreparationStart = timeutil.At(now)
	return nil
}

// assignBattleCodes pairs the i-th member of each team into one sub-match
// and gives every sub-match a fresh correlation code, collision-checked
// within the draft only.
func (f *Finalizer) assignBattleCodes(d *models.Draft) {
	var teamA, teamB []models.AssignedMember
	for _, m := range d.FinalAssignments {
		if m.Team == models.SideA {
			teamA = append(teamA, m)
		} else {
			teamB = append(teamB, m)
		}
	}

	n := len(teamA)
	if len(teamB) < n {
		n = len(teamB)
	}

	d.BattleCodes = nil
	d.MatchPlayers = nil
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		code := f.newBattleCode(seen)
		seen[code] = true
		d.BattleCodes = append(d.BattleCodes, code)
		d.MatchPlayers = append(d.MatchPlayers,
			models.MatchPlayer{UserID: teamA[i].UserID, Side: models.SideA, BattleCode: code},
			models.MatchPlayer{UserID: teamB[i].UserID, Side: models.SideB, BattleCode: code},
		)
	}
}

func (f *Finalizer) newBattleCode(seen map[string]bool) string {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	for {
		buf := make([]byte, battleCodeLen)
		for i := range buf {
			buf[i] = battleCodeAlphabet[f.rng.Intn(len(battleCodeAlphabet))]
		}
		code := string(buf)
		if !seen[code] {
			return code
		}
	}
}

func teamKey(s models.Side) string {
	if s == models.SideA {
		return "teamA"
	}
	return "teamB"
}
