package models

import (
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// VerificationStatus classifies one sub-match against its authoritative
// external record.
type VerificationStatus string

const (
	// Non-terminal: retried on a later sweep.
	VerificationNotFound       VerificationStatus = "not_found"
	VerificationError          VerificationStatus = "error"
	VerificationWrongPlayers   VerificationStatus = "wrong_players"
	VerificationPlayerMismatch VerificationStatus = "player_mismatch"

	// Terminal.
	VerificationVerified      VerificationStatus = "verified"
	VerificationDisqualifiedA VerificationStatus = "disqualified_A"
	VerificationDisqualifiedB VerificationStatus = "disqualified_B"
	VerificationBothDisq      VerificationStatus = "both_disqualified"
)

// Terminal reports whether the status needs no further checks.
func (s VerificationStatus) Terminal() bool {
	switch s {
	case VerificationVerified, VerificationDisqualifiedA, VerificationDisqualifiedB, VerificationBothDisq:
		return true
	}
	return false
}

// VerificationResult is one sub-match outcome, appended to the draft and
// never mutated once the draft's overall verification is complete except to
// support a pending payout re-check.
type VerificationResult struct {
	BattleCode      string             `json:"battleCode"`
	Status          VerificationStatus `json:"status"`
	Winner          Side               `json:"winner,omitempty"`
	DeclaredLineups map[Side][]string  `json:"declaredLineups,omitempty"`
	ObservedLineups map[Side][]string  `json:"observedLineups,omitempty"`
	CheckedAt       timeutil.Timestamp `json:"checkedAt,omitempty"`
	VerifiedAt      timeutil.Timestamp `json:"verifiedAt,omitempty"`
	Detail          string             `json:"detail,omitempty"`
}
