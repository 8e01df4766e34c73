// Package settlement moves prize-pool funds exactly once per draft: a
// winner credit on a decisive result, or per-entrant refunds on a draw,
// double disqualification, or cancellation. PayoutComplete on the draft is
// the sole guard against double settlement and is written in the same
// transaction as every ledger mutation.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
	"github.com/aurorydraft2026/draftforge/internal/wallet"
)

// Payout methods recorded on the receipt.
const (
	MethodAuto   = "auto"
	MethodManual = "manual"
)

// ErrWinnerNotRecorded means the draft has no overall result yet; manual
// payout requires one as a precondition.
var ErrWinnerNotRecorded = errors.New("settlement: overall winner not recorded")

// Outcome reports what a settlement call did. A no-op because the payout
// was already complete is success, not an error.
type Outcome struct {
	Applied bool
	Winner  string
	Amount  float64
	Refunds map[string]float64
}

type Settler struct {
	store     store.Store
	clock     clockwork.Clock
	taxRate   float64
	resolvers []WinnerResolver
}

func New(st store.Store, clock clockwork.Clock, taxRate float64, resolvers []WinnerResolver) *Settler {
	if resolvers == nil {
		resolvers = DefaultResolvers()
	}
	return &Settler{store: st, clock: clock, taxRate: taxRate, resolvers: resolvers}
}

// SettleDraft settles one draft. Draws and both-disqualified results
// refund every contributor exactly what they paid; a decisive result
// credits the winner with the full pool less tax. The whole settlement is
// one atomic unit.
func (s *Settler) SettleDraft(ctx context.Context, draftID, method string) (Outcome, error) {
	var out Outcome
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.PayoutComplete {
			return nil // idempotency guard: success, no effect
		}
		if d.OverallWinner == "" {
			return ErrWinnerNotRecorded
		}

		now := s.clock.Now()

		if d.OverallWinner == models.OverallDraw {
			refunds, err := s.refundEntrants(ctx, tx, d, models.TxnRefundDraw, now)
			if err != nil {
				return err
			}
			d.PayoutComplete = true
			d.PayoutData = &models.PayoutReceipt{
				Method:   method,
				Refunded: refunds,
				PaidAt:   timeutil.At(now),
			}
			out = Outcome{Applied: true, Refunds: refunds}
			return tx.PutDraft(ctx, d)
		}

		// Resolve the payable identity before any ledger write so a
		// data-integrity failure cannot leave partial mutations.
		winnerID, source, err := resolveWinner(s.resolvers, d, models.Side(d.OverallWinner))
		if err != nil {
			return err
		}

		amount := d.PoolAmount * (1 - s.taxRate)
		if err := wallet.Credit(ctx, tx, winnerID, amount, models.TxnPrizeWon, d.ID, now); err != nil {
			return err
		}

		d.PayoutComplete = true
		d.PayoutData = &models.PayoutReceipt{
			Winner: winnerID,
			Amount: amount,
			Method: method,
			PaidAt: timeutil.At(now),
		}
		out = Outcome{Applied: true, Winner: winnerID, Amount: amount}

		log.Info().
			Str("draft_id", d.ID).
			Str("winner", winnerID).
			Str("resolved_via", source).
			Float64("amount", amount).
			Msg("prize pool paid out")
		return tx.PutDraft(ctx, d)
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// RefundDeletedDraft removes a draft and, when the draft never reached
// active play, refunds every recorded entry fee. Drafts that already
// started or finished are deleted without refunds; settlement for those
// flows through the verification outcome instead.
func (s *Settler) RefundDeletedDraft(ctx context.Context, draftID string) (map[string]float64, error) {
	var refunded map[string]float64
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if preActive(d.Status) {
			refunded, err = s.refundEntrants(ctx, tx, d, models.TxnRefundPool, s.clock.Now())
			if err != nil {
				return err
			}
		}
		return tx.DeleteDraft(ctx, draftID)
	})
	if err != nil {
		return nil, err
	}
	if len(refunded) > 0 {
		log.Info().Str("draft_id", draftID).Int("entrants", len(refunded)).Msg("refunded pool for deleted draft")
	}
	return refunded, nil
}

// RefundRemovedEntrant returns one participant's entry fee when they are
// removed from a draft that has not started, and drops their contribution
// from the pool so a later payout cannot include money already returned.
func (s *Settler) RefundRemovedEntrant(ctx context.Context, draftID, userID string) (float64, error) {
	var amount float64
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		paid, ok := d.EntryPaid[userID]
		if !ok || paid <= 0 {
			return nil // nothing was paid, nothing to return
		}
		now := s.clock.Now()
		if err := wallet.Credit(ctx, tx, userID, paid, models.TxnEntryFeeRefund, d.ID, now); err != nil {
			return err
		}
		delete(d.EntryPaid, userID)
		d.PoolAmount -= paid
		if d.PoolAmount < 0 {
			d.PoolAmount = 0
		}
		amount = paid
		return tx.PutDraft(ctx, d)
	})
	return amount, err
}

// preActive reports whether a draft has not yet produced competitive state
// worth settling. Once a draft is active its entry fees stay in the pool.
func preActive(status models.DraftStatus) bool {
	switch status {
	case models.DraftStatusWaiting, models.DraftStatusCoinFlip,
		models.DraftStatusAssignment, models.DraftStatusPoolShuffle:
		return true
	}
	return false
}

// refundEntrants credits every contributor recorded in the entry-fee
// ledger for exactly the amount they paid. The entry ledger, not roster
// membership, is the trustworthy signal of who paid.
func (s *Settler) refundEntrants(ctx context.Context, tx store.Tx, d *models.Draft, txnType models.TransactionType, now time.Time) (map[string]float64, error) {
	refunds := make(map[string]float64, len(d.EntryPaid))
	for userID, amount := range d.EntryPaid {
		if amount <= 0 {
			continue
		}
		if err := wallet.Credit(ctx, tx, userID, amount, txnType, d.ID, now); err != nil {
			return nil, fmt.Errorf("failed to refund %s: %w", userID, err)
		}
		refunds[userID] = amount
	}
	return refunds, nil
}
