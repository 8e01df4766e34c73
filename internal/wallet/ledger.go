// Package wallet holds the ledger primitives the settlement engine uses.
// Wallet documents are owned by the ledger subsystem; the engine only ever
// writes them through the store's transaction primitive.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// Credit adds amount to a user's wallet and appends one ledger entry, all
// within the caller's transaction. A wallet that does not exist yet is
// created with the credited balance rather than treated as an error.
func Credit(ctx context.Context, tx store.Tx, userID string, amount float64, txnType models.TransactionType, draftID string, now time.Time) error {
	w, err := tx.GetWallet(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		w = &models.Wallet{UserID: userID}
	} else if err != nil {
		return fmt.Errorf("failed to read wallet %s: %w", userID, err)
	}

	w.Balance += amount
	w.UpdatedAt = timeutil.At(now)
	if err := tx.PutWallet(ctx, w); err != nil {
		return fmt.Errorf("failed to write wallet %s: %w", userID, err)
	}

	entry := models.WalletTransaction{
		ID:        uuid.NewString(),
		Type:      txnType,
		Amount:    amount,
		DraftID:   draftID,
		CreatedAt: timeutil.At(now),
	}
	if err := tx.AppendWalletTransaction(ctx, userID, entry); err != nil {
		return fmt.Errorf("failed to append wallet transaction for %s: %w", userID, err)
	}
	return nil
}
