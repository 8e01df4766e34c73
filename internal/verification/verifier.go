// Package verification correlates a completed draft's declared lineups
// against the external authoritative match records and derives a winner.
// Partial results are persisted and retried on later sweeps; a draft is
// fully verified only when every sub-match reaches a terminal status.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/clients/resultsapi"
	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

const (
	// CheckThrottle skips drafts re-checked too recently.
	CheckThrottle = 2 * time.Minute
	// AbandonAfter stops checking drafts that completed long ago.
	AbandonAfter = 48 * time.Hour
)

// ResultsClient fetches authoritative battle records.
type ResultsClient interface {
	GetBattle(ctx context.Context, code string) (*resultsapi.Battle, error)
}

// Verifier holds no per-draft state; everything lives on the document.
type Verifier struct {
	store  store.Store
	client ResultsClient
	clock  clockwork.Clock
}

func New(st store.Store, client ResultsClient, clock clockwork.Clock) *Verifier {
	return &Verifier{store: st, client: client, clock: clock}
}

// ProcessDraft verifies whatever sub-matches it can and persists the
// progress. Returns whether the draft became fully verified in this call.
func (v *Verifier) ProcessDraft(ctx context.Context, draftID string) (bool, error) {
	d, err := v.store.GetDraft(ctx, draftID)
	if err != nil {
		return false, err
	}

	now := v.clock.Now()
	if d.Status != models.DraftStatusCompleted {
		return false, nil
	}
	if d.VerificationStatus == models.VerificationComplete {
		return false, nil
	}
	if d.CompletedAt.IsZero() {
		// Partially written state: stamp a baseline so the 48h age-out can
		// ever trigger, and let the next sweep fetch.
		return false, v.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			cur, err := tx.GetDraft(ctx, draftID)
			if err != nil {
				return err
			}
			if cur.Status != models.DraftStatusCompleted || !cur.CompletedAt.IsZero() {
				return nil
			}
			cur.CompletedAt = timeutil.At(now)
			return tx.PutDraft(ctx, cur)
		})
	}
	if d.CompletedAt.Expired(now, AbandonAfter) {
		return false, nil // aged out, no further checks
	}
	if !d.LastVerificationCheck.IsZero() && !d.LastVerificationCheck.Expired(now, CheckThrottle) {
		return false, nil
	}

	// Fetch outside the transaction; network failures are transient and
	// leave the affected sub-match non-terminal.
	fresh := make(map[string]*models.VerificationResult)
	for _, code := range d.BattleCodes {
		if existing := d.MatchResults[code]; existing != nil && existing.Status.Terminal() {
			continue
		}
		fresh[code] = v.verifyBattle(ctx, d, code, now)
	}

	var completed bool
	var winner string
	err = v.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if cur.Status != models.DraftStatusCompleted || cur.VerificationStatus == models.VerificationComplete {
			return nil
		}

		if cur.MatchResults == nil {
			cur.MatchResults = make(map[string]*models.VerificationResult)
		}
		for code, result := range fresh {
			// Never overwrite a result another invocation finished.
			if existing := cur.MatchResults[code]; existing != nil && existing.Status.Terminal() {
				continue
			}
			cur.MatchResults[code] = result
		}
		cur.LastVerificationCheck = timeutil.At(now)

		if allTerminal(cur) {
			cur.VerificationStatus = models.VerificationComplete
			cur.OverallWinner = overallWinner(cur)
			winner = cur.OverallWinner
			completed = true
		} else {
			cur.VerificationStatus = models.VerificationPartial
		}
		return tx.PutDraft(ctx, cur)
	})
	if err != nil {
		return false, err
	}
	if completed {
		log.Info().
			Str("draft_id", draftID).
			Str("overall_winner", winner).
			Msg("draft fully verified")
	}
	return completed, nil
}

// verifyBattle evaluates one sub-match against its authoritative record.
func (v *Verifier) verifyBattle(ctx context.Context, d *models.Draft, code string, now time.Time) *models.VerificationResult {
	result := &models.VerificationResult{
		BattleCode: code,
		CheckedAt:  timeutil.At(now),
		DeclaredLineups: map[models.Side][]string{
			models.SideA: d.Picks[models.SideA],
			models.SideB: d.Picks[models.SideB],
		},
	}

	battle, err := v.client.GetBattle(ctx, code)
	if errors.Is(err, resultsapi.ErrNotFound) {
		result.Status = models.VerificationNotFound
		return result
	}
	if err != nil {
		log.Warn().Err(err).Str("battle_code", code).Msg("battle fetch failed, will retry")
		result.Status = models.VerificationError
		result.Detail = err.Error()
		return result
	}
	if !battle.Finished {
		result.Status = models.VerificationNotFound
		result.Detail = "battle not finished"
		return result
	}

	playerA, playerB := declaredParticipants(d, code)
	recA := findPlayer(battle, playerA)
	recB := findPlayer(battle, playerB)
	switch {
	case recA == nil && recB == nil:
		result.Status = models.VerificationWrongPlayers
		return result
	case recA == nil || recB == nil:
		result.Status = models.VerificationPlayerMismatch
		return result
	}

	result.ObservedLineups = map[models.Side][]string{
		models.SideA: recA.Lineup,
		models.SideB: recB.Lineup,
	}

	dqA := !LineupsEqual(result.DeclaredLineups[models.SideA], recA.Lineup)
	dqB := !LineupsEqual(result.DeclaredLineups[models.SideB], recB.Lineup)
	switch {
	case dqA && dqB:
		result.Status = models.VerificationBothDisq
	case dqA:
		result.Status = models.VerificationDisqualifiedA
		result.Winner = models.SideB
	case dqB:
		result.Status = models.VerificationDisqualifiedB
		result.Winner = models.SideA
	default:
		result.Status = models.VerificationVerified
		if recA.Winner {
			result.Winner = models.SideA
		} else if recB.Winner {
			result.Winner = models.SideB
		}
		// Neither marked as winner: a draw, still verified.
	}
	result.VerifiedAt = timeutil.At(now)
	return result
}

// declaredParticipants returns the user identifiers declared for a battle
// code, one per side.
func declaredParticipants(d *models.Draft, code string) (string, string) {
	var a, b string
	for _, mp := range d.MatchPlayers {
		if mp.BattleCode != code {
			continue
		}
		if mp.Side == models.SideA {
			a = mp.UserID
		} else {
			b = mp.UserID
		}
	}
	return a, b
}

func findPlayer(battle *resultsapi.Battle, userID string) *resultsapi.Player {
	if userID == "" {
		return nil
	}
	want := Normalize(userID)
	for i := range battle.Players {
		if Normalize(battle.Players[i].Name) == want {
			return &battle.Players[i]
		}
	}
	return nil
}

func allTerminal(d *models.Draft) bool {
	if len(d.BattleCodes) == 0 {
		return false
	}
	for _, code := range d.BattleCodes {
		r := d.MatchResults[code]
		if r == nil || !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// overallWinner aggregates terminal sub-match results into the draft's
// overall outcome: the side with more sub-match wins, or a draw.
func overallWinner(d *models.Draft) string {
	var winsA, winsB int
	for _, code := range d.BattleCodes {
		switch r := d.MatchResults[code]; r.Status {
		case models.VerificationVerified:
			if r.Winner == models.SideA {
				winsA++
			} else if r.Winner == models.SideB {
				winsB++
			}
		case models.VerificationDisqualifiedA:
			winsB++ // forfeit
		case models.VerificationDisqualifiedB:
			winsA++
		case models.VerificationBothDisq:
			// draw-equivalent, no win either way
		}
	}
	switch {
	case winsA > winsB:
		return string(models.SideA)
	case winsB > winsA:
		return string(models.SideB)
	default:
		return models.OverallDraw
	}
}
