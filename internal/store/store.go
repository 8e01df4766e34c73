// Package store defines the transactional document-store contract the
// engine depends on. Every mutating step re-reads current state inside the
// same transaction that writes it; a transaction whose preconditions are
// already falsified performs no write. The engine depends only on this
// contract, not on any specific product.
package store

import (
	"context"
	"errors"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: document not found")

// ErrConflict is returned when an optimistic write lost to a concurrent
// writer. RunTransaction retries these transparently.
var ErrConflict = errors.New("store: optimistic write conflict")

// Tx is the per-transaction view of the store.
type Tx interface {
	GetDraft(ctx context.Context, id string) (*models.Draft, error)
	PutDraft(ctx context.Context, d *models.Draft) error
	DeleteDraft(ctx context.Context, id string) error

	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	PutWallet(ctx context.Context, w *models.Wallet) error
	AppendWalletTransaction(ctx context.Context, userID string, txn models.WalletTransaction) error
}

// Store is the engine's handle on the persistence layer.
type Store interface {
	// RunTransaction executes fn atomically, retrying a bounded number of
	// times when concurrent writers conflict. If fn returns an error the
	// transaction rolls back and nothing is written.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// DraftsByStatus returns up to limit drafts currently in the given
	// status. The snapshot is advisory: callers must re-validate inside a
	// transaction before mutating.
	DraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]*models.Draft, error)

	// GetDraft reads a draft outside any transaction.
	GetDraft(ctx context.Context, id string) (*models.Draft, error)
}
