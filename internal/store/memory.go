package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

// Memory is a map-backed Store used by tests and local development.
// Transactions are serialized by a single mutex, which gives the same
// observable guarantee as the production store: at most one of any set of
// overlapping transactions sees the old state.
type Memory struct {
	mu      sync.Mutex
	drafts  map[string]*models.Draft
	wallets map[string]*models.Wallet
	ledger  map[string][]models.WalletTransaction
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		drafts:  make(map[string]*models.Draft),
		wallets: make(map[string]*models.Wallet),
		ledger:  make(map[string][]models.WalletTransaction),
	}
}

// SeedDraft inserts a draft directly, bypassing transactions. Test helper.
func (m *Memory) SeedDraft(d *models.Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[d.ID] = cloneDraft(d)
}

// WalletBalance reads a wallet balance directly. Test helper.
func (m *Memory) WalletBalance(userID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[userID]; ok {
		return w.Balance
	}
	return 0
}

// Transactions returns a copy of a user's ledger. Test helper.
func (m *Memory) Transactions(userID string) []models.WalletTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WalletTransaction(nil), m.ledger[userID]...)
}

type memoryTx struct {
	m *Memory

	// Staged writes, applied on commit.
	draftPuts    map[string]*models.Draft
	draftDels    map[string]bool
	walletPuts   map[string]*models.Wallet
	ledgerWrites map[string][]models.WalletTransaction
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:            m,
		draftPuts:    make(map[string]*models.Draft),
		draftDels:    make(map[string]bool),
		walletPuts:   make(map[string]*models.Wallet),
		ledgerWrites: make(map[string][]models.WalletTransaction),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, d := range tx.draftPuts {
		d.Version++
		m.drafts[id] = d
	}
	for id := range tx.draftDels {
		delete(m.drafts, id)
	}
	for id, w := range tx.walletPuts {
		w.Version++
		m.wallets[id] = w
	}
	for user, txns := range tx.ledgerWrites {
		m.ledger[user] = append(m.ledger[user], txns...)
	}
	return nil
}

func (m *Memory) DraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Draft
	for _, d := range m.drafts {
		if d.Status != status {
			continue
		}
		out = append(out, cloneDraft(d))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (t *memoryTx) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	if t.draftDels[id] {
		return nil, ErrNotFound
	}
	if d, ok := t.draftPuts[id]; ok {
		return cloneDraft(d), nil
	}
	d, ok := t.m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (t *memoryTx) PutDraft(ctx context.Context, d *models.Draft) error {
	t.draftPuts[d.ID] = cloneDraft(d)
	delete(t.draftDels, d.ID)
	return nil
}

func (t *memoryTx) DeleteDraft(ctx context.Context, id string) error {
	t.draftDels[id] = true
	delete(t.draftPuts, id)
	return nil
}

func (t *memoryTx) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if w, ok := t.walletPuts[userID]; ok {
		return cloneWallet(w), nil
	}
	w, ok := t.m.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWallet(w), nil
}

func (t *memoryTx) PutWallet(ctx context.Context, w *models.Wallet) error {
	t.walletPuts[w.UserID] = cloneWallet(w)
	return nil
}

func (t *memoryTx) AppendWalletTransaction(ctx context.Context, userID string, txn models.WalletTransaction) error {
	t.ledgerWrites[userID] = append(t.ledgerWrites[userID], txn)
	return nil
}

func cloneDraft(d *models.Draft) *models.Draft {
	out, err := roundTrip(d, &models.Draft{})
	if err != nil {
		panic(fmt.Sprintf("memory store: clone draft: %v", err))
	}
	c := out.(*models.Draft)
	c.Version = d.Version
	return c
}

func cloneWallet(w *models.Wallet) *models.Wallet {
	out, err := roundTrip(w, &models.Wallet{})
	if err != nil {
		panic(fmt.Sprintf("memory store: clone wallet: %v", err))
	}
	c := out.(*models.Wallet)
	c.Version = w.Version
	return c
}

// roundTrip deep-copies via JSON, which also keeps the memory store honest
// about what actually persists through document serialization.
func roundTrip(in, out any) (any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
