package models

import (
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

// Mode selects the pick/ban topology of a draft. The phase table and
// selection-exclusivity policy for each mode live in the phases package;
// the mode is chosen once at draft creation and carried as data.
type Mode string

const (
	ModeStandard Mode = "standard" // bans + alternating picks, both-side exclusive
	ModeOpen     Mode = "open"     // picks only, roster overlap permitted
	ModeTurbo    Mode = "turbo"    // short shared-timer alternating picks
	ModeBlitz    Mode = "blitz"    // fully parallel, split sub-pools
)

// DraftStatus follows a fixed directed path with no back-edges:
// waiting -> coinFlip -> assignment -> poolShuffle|active -> completed.
type DraftStatus string

const (
	DraftStatusWaiting     DraftStatus = "waiting"
	DraftStatusCoinFlip    DraftStatus = "coinFlip"
	DraftStatusAssignment  DraftStatus = "assignment"
	DraftStatusPoolShuffle DraftStatus = "poolShuffle"
	DraftStatusActive      DraftStatus = "active"
	DraftStatusCompleted   DraftStatus = "completed"
)

// Side identifies one of the two competing parties.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// LockedPhase records one completed turn for audit/display.
type LockedPhase struct {
	Phase    int                `json:"phase"`
	Side     Side               `json:"side"`
	Items    []string           `json:"items"`
	AutoPick bool               `json:"autoPick,omitempty"`
	LockedAt timeutil.Timestamp `json:"lockedAt"`
}

// AssignedMember is one entry of the flattened assignment list written when
// a resolved coin flip is converted into concrete teams.
type AssignedMember struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Team        Side   `json:"team"`
	Leader      bool   `json:"leader,omitempty"`
}

// MatchPlayer links a participant to the sub-match they play, keyed by the
// battle correlation code generated at assignment finalization.
type MatchPlayer struct {
	UserID     string `json:"userId"`
	Side       Side   `json:"side"`
	BattleCode string `json:"battleCode"`
}

// PayoutReceipt is stamped onto the draft in the same transaction as the
// ledger writes; PayoutComplete is the sole guard against double settlement.
type PayoutReceipt struct {
	Winner   string             `json:"winner,omitempty"`
	Amount   float64            `json:"amount"`
	Method   string             `json:"method"`
	Refunded map[string]float64 `json:"refunded,omitempty"`
	PaidAt   timeutil.Timestamp `json:"paidAt"`
}

// Overall draft results once every sub-match is terminal.
const (
	OverallDraw = "draw"
)

// Draft is the single source of truth for orchestration state. The engine
// holds no cross-invocation memory; every field that drives "what happens
// next and when" lives here.
type Draft struct {
	ID     string      `json:"id"`
	Mode   Mode        `json:"mode"`
	Status DraftStatus `json:"status"`

	// Turn state.
	CurrentPhase int              `json:"currentPhase"`
	CurrentSide  Side             `json:"currentSide,omitempty"`
	PhasePicks   int              `json:"phasePicks"`
	PhaseItems   []string         `json:"phaseItems,omitempty"`
	Picks        map[Side][]string `json:"picks,omitempty"`
	Bans         map[Side][]string `json:"bans,omitempty"`
	LockedPhases []LockedPhase    `json:"lockedPhases,omitempty"`

	// Item pool. Blitz drafts additionally get disjoint per-side sub-pools.
	Pool     []string          `json:"pool,omitempty"`
	SubPools map[Side][]string `json:"subPools,omitempty"`

	// Timers. Per-side modes use TimerStart keyed by the acting side;
	// shared-timer modes use SharedTimerStart.
	TimerStart       map[Side]timeutil.Timestamp `json:"timerStart,omitempty"`
	SharedTimerStart timeutil.Timestamp          `json:"sharedTimerStart,omitempty"`

	InPreparation    bool               `json:"inPreparation"`
	PreparationStart timeutil.Timestamp `json:"preparationStart,omitempty"`

	// Open human-confirmation gate; if left open past the turn timer it is
	// treated like an ordinary timeout and the phase is locked as-is.
	AwaitingLockConfirmation bool `json:"awaitingLockConfirmation,omitempty"`

	// Coin flip and assignment.
	CoinFlip             *CoinFlip           `json:"coinFlip,omitempty"`
	Rosters              map[Side][]string   `json:"rosters,omitempty"`
	Leaders              map[Side]string     `json:"leaders,omitempty"`
	FinalAssignments     []AssignedMember    `json:"finalAssignments,omitempty"`
	AssignmentLeaders    map[string]string   `json:"assignmentLeaders,omitempty"`
	AssignmentPreparedAt timeutil.Timestamp  `json:"assignmentPreparedAt,omitempty"`
	TeamAOrigin          Side                `json:"teamAOrigin,omitempty"`
	SideColors           map[Side]string     `json:"sideColors,omitempty"`
	PoolShuffledAt       timeutil.Timestamp  `json:"poolShuffledAt,omitempty"`
	BattleCodes          []string            `json:"battleCodes,omitempty"`
	MatchPlayers         []MatchPlayer       `json:"matchPlayers,omitempty"`
	Permissions          map[string]string   `json:"permissions,omitempty"`

	// Financials.
	PoolAmount     float64            `json:"poolAmount"`
	EntryPaid      map[string]float64 `json:"entryPaid,omitempty"`
	PayoutComplete bool               `json:"payoutComplete"`
	PayoutData     *PayoutReceipt     `json:"payoutData,omitempty"`

	// Verification.
	MatchResults          map[string]*VerificationResult `json:"matchResults,omitempty"`
	VerificationStatus    string                         `json:"verificationStatus,omitempty"`
	OverallWinner         string                         `json:"overallWinner,omitempty"`
	LastVerificationCheck timeutil.Timestamp             `json:"lastVerificationCheck,omitempty"`

	CreatedAt   timeutil.Timestamp `json:"createdAt,omitempty"`
	CompletedAt timeutil.Timestamp `json:"completedAt,omitempty"`

	// Version is the store's optimistic-concurrency counter. It is not part
	// of the document body.
	Version int64 `json:"-"`
}

// VerificationComplete reports whether every sub-match reached a terminal
// verification status.
const (
	VerificationPartial  = "partial"
	VerificationComplete = "complete"
)
