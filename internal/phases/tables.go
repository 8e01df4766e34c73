package phases

import (
	"time"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

// Phase is one ordered turn descriptor in a mode's pick/ban sequence.
type Phase struct {
	Side         models.Side
	Count        int
	IsBanPhase   bool
	Simultaneous bool
}

// Config carries everything mode-dependent as data: the phase table, the
// selection-exclusivity policy, the timer topology, and the pool size
// allocated to the mode. Loaded at process start, shared read-only.
type Config struct {
	Mode         models.Mode
	Phases       []Phase
	TurnDuration time.Duration
	SharedTimer  bool
	// OverlapAllowed: auto-pick excludes only the acting side's own picks
	// and bans; otherwise every already-picked item by either side is
	// excluded.
	OverlapAllowed bool
	// SplitPool: the shared pool is shuffled once at assignment
	// finalization and split into two disjoint sub-pools of SubPoolSize.
	SplitPool   bool
	SubPoolSize int
	PoolSize    int
}

var configs = map[models.Mode]Config{
	models.ModeStandard: {
		Mode: models.ModeStandard,
		Phases: []Phase{
			{Side: models.SideA, Count: 1, IsBanPhase: true},
			{Side: models.SideB, Count: 1, IsBanPhase: true},
			{Side: models.SideA, Count: 1, IsBanPhase: true},
			{Side: models.SideB, Count: 1, IsBanPhase: true},
			{Side: models.SideA, Count: 3},
			{Side: models.SideB, Count: 3},
			{Side: models.SideA, Count: 3},
			{Side: models.SideB, Count: 3},
		},
		TurnDuration: 30 * time.Second,
		PoolSize:     16,
	},
	models.ModeOpen: {
		Mode: models.ModeOpen,
		Phases: []Phase{
			{Side: models.SideA, Count: 2},
			{Side: models.SideB, Count: 2},
			{Side: models.SideA, Count: 2},
			{Side: models.SideB, Count: 2},
			{Side: models.SideA, Count: 2},
			{Side: models.SideB, Count: 2},
		},
		TurnDuration:   30 * time.Second,
		OverlapAllowed: true,
		PoolSize:       12,
	},
	models.ModeTurbo: {
		Mode: models.ModeTurbo,
		Phases: []Phase{
			{Side: models.SideA, Count: 1},
			{Side: models.SideB, Count: 1},
			{Side: models.SideA, Count: 1},
			{Side: models.SideB, Count: 1},
			{Side: models.SideA, Count: 1},
			{Side: models.SideB, Count: 1},
			{Side: models.SideA, Count: 1},
			{Side: models.SideB, Count: 1},
		},
		TurnDuration: 15 * time.Second,
		SharedTimer:  true,
		PoolSize:     8,
	},
	models.ModeBlitz: {
		Mode: models.ModeBlitz,
		Phases: []Phase{
			{Side: models.SideA, Count: 8, Simultaneous: true},
			{Side: models.SideB, Count: 8, Simultaneous: true},
		},
		TurnDuration:   60 * time.Second,
		SharedTimer:    true,
		OverlapAllowed: true,
		SplitPool:      true,
		SubPoolSize:    8,
		PoolSize:       16,
	},
}

// ForMode returns the static config for a mode.
func ForMode(mode models.Mode) (Config, bool) {
	cfg, ok := configs[mode]
	return cfg, ok
}

// Modes lists every known mode.
func Modes() []models.Mode {
	return []models.Mode{models.ModeStandard, models.ModeOpen, models.ModeTurbo, models.ModeBlitz}
}

// Simultaneous reports whether the mode completes both sides in one step
// with no phase advancement.
func (c Config) Simultaneous() bool {
	return len(c.Phases) > 0 && c.Phases[0].Simultaneous
}

// PhaseAt returns the descriptor for a phase index.
func (c Config) PhaseAt(i int) (Phase, bool) {
	if i < 0 || i >= len(c.Phases) {
		return Phase{}, false
	}
	return c.Phases[i], true
}
