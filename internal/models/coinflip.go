package models

import (
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// CoinFlipPhase is one step of the first-pick resolution sequence. Each
// phase advances unconditionally once its dwell time elapses; the only
// branch is at turnChoice, where the winning side may choose before the
// timeout does it for them.
type CoinFlipPhase string

const (
	CoinFlipSpinning   CoinFlipPhase = "spinning"
	CoinFlipResult     CoinFlipPhase = "result"
	CoinFlipTurnChoice CoinFlipPhase = "turnChoice"
	CoinFlipDone       CoinFlipPhase = "done"
)

// Turn choices available to the coin-flip winner.
const (
	TurnChoiceFirst  = "first"
	TurnChoiceSecond = "second"
)

// CoinFlip is the nested sub-state created when a draft enters coinFlip
// status and cleared once assignment is finalized.
type CoinFlip struct {
	Phase            CoinFlipPhase      `json:"phase"`
	PhaseChangedAt   timeutil.Timestamp `json:"phaseChangedAt,omitempty"`
	WinnerSide       Side               `json:"winnerSide,omitempty"`
	WinnerTurnChoice string             `json:"winnerTurnChoice,omitempty"`
}
