package models

import (
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// TransactionType tags entries in a wallet's append-only ledger.
type TransactionType string

const (
	TxnRefundPool     TransactionType = "refund_pool"      // draft deleted before it started
	TxnRefundDraw     TransactionType = "refund_draw"      // draw or both sides disqualified
	TxnEntryFeeRefund TransactionType = "entry_fee_refund" // paid participant removed at edit time
	TxnPrizeWon       TransactionType = "prize_won"
)

// Wallet is the ledger document for one user. Mutated only by the
// settlement engine under transactional control.
type Wallet struct {
	UserID    string             `json:"userId"`
	Balance   float64            `json:"balance"`
	UpdatedAt timeutil.Timestamp `json:"updatedAt,omitempty"`

	Version int64 `json:"-"`
}

// WalletTransaction is one append-only ledger entry.
type WalletTransaction struct {
	ID        string             `json:"id"`
	Type      TransactionType    `json:"type"`
	Amount    float64            `json:"amount"`
	DraftID   string             `json:"draftId,omitempty"`
	Note      string             `json:"note,omitempty"`
	CreatedAt timeutil.Timestamp `json:"createdAt"`
}

// Profile is the minimal account record resolved for assignment display.
// Resolution is best-effort: a missing profile still participates, keyed by
// identifier only.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}
