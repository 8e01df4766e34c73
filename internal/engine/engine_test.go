package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/phases"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

var testEpoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newEngine(st store.Store, clock clockwork.Clock) *Engine {
	return New(st, clock, rand.New(rand.NewSource(99)))
}

func activeStandardDraft(id string, phase int) *models.Draft {
	cfg, _ := phases.ForMode(models.ModeStandard)
	p, _ := cfg.PhaseAt(phase)
	return &models.Draft{
		ID:           id,
		Mode:         models.ModeStandard,
		Status:       models.DraftStatusActive,
		CurrentPhase: phase,
		CurrentSide:  p.Side,
		Pool: []string{
			"i01", "i02", "i03", "i04", "i05", "i06", "i07", "i08",
			"i09", "i10", "i11", "i12", "i13", "i14", "i15", "i16",
		},
		Picks: map[models.Side][]string{},
		Bans:  map[models.Side][]string{},
		TimerStart: map[models.Side]timeutil.Timestamp{
			p.Side: timeutil.At(testEpoch.Add(-31 * time.Second)),
		},
	}
}

func TestExpiredPickPhaseAutoPicksAndLocks(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	// Phase 4 of standard mode: side A, 3 picks, none made, timer 31s old
	// against a 30s turn duration.
	d := activeStandardDraft("d1", 4)
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Locked)
	assert.False(t, res.Completed)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Len(t, got.Picks[models.SideA], 3)
	assert.Equal(t, 5, got.CurrentPhase)
	assert.Equal(t, models.SideB, got.CurrentSide)
	assert.True(t, got.InPreparation, "preparation delay must gate the next side's timer")
	assert.Len(t, got.LockedPhases, 1)
	assert.True(t, got.LockedPhases[0].AutoPick)
}

func TestExpiredTimerIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)
	st.SeedDraft(activeStandardDraft("d1", 4))

	res1, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	require.True(t, res1.Applied)

	after, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)

	// The second invocation observes inPreparation=true and exits cleanly.
	res2, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res2.Applied)

	again, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, after.Version, again.Version, "no-op must not write")
}

func TestUnexpiredTimerNoOps(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 4)
	d.TimerStart[models.SideA] = timeutil.At(testEpoch.Add(-10 * time.Second))
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestMissingTimerIsStampedAndStepNoOps(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 4)
	d.TimerStart = nil
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	start, ok := got.TimerStart[models.SideA].Time()
	require.True(t, ok, "timer must be self-healed")
	assert.Equal(t, testEpoch, start)
}

func TestOpenLockGateForceLocksWithoutPicking(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 4)
	d.AwaitingLockConfirmation = true
	d.Picks[models.SideA] = []string{"i01"}
	d.PhasePicks = 1
	d.PhaseItems = []string{"i01"}
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Len(t, got.Picks[models.SideA], 1, "gate open: phase locks as-is")
	assert.False(t, got.AwaitingLockConfirmation)
	assert.Equal(t, 5, got.CurrentPhase)
	require.Len(t, got.LockedPhases, 1)
	assert.False(t, got.LockedPhases[0].AutoPick, "human selections are not recorded as auto-picks")
}

func TestSatisfiedPhaseForceLockIsNotAutoPick(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	// All three picks already made by hand; expiry just locks the phase.
	d := activeStandardDraft("d1", 4)
	d.Picks[models.SideA] = []string{"i01", "i02", "i03"}
	d.PhasePicks = 3
	d.PhaseItems = []string{"i01", "i02", "i03"}
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Len(t, got.Picks[models.SideA], 3)
	require.Len(t, got.LockedPhases, 1)
	assert.False(t, got.LockedPhases[0].AutoPick)
}

func TestExpiredBanPhaseFillsNoopPlaceholder(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 0) // side A ban phase
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, got.Bans[models.SideA], "noop ban must never enter the real ban list")
	require.Len(t, got.LockedPhases, 1)
	assert.Equal(t, []string{phases.NoopBan}, got.LockedPhases[0].Items)
}

func TestFinalPhaseCompletesDraft(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 7) // last phase: side B, 3 picks
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Completed)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
	assert.False(t, got.InPreparation)
}

func TestAutoPickNeverTakesOpponentItems(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 4)
	d.Picks[models.SideB] = []string{"i01", "i02", "i03", "i04", "i05"}
	d.Bans[models.SideB] = []string{"i06"}
	st.SeedDraft(d)

	_, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	for _, it := range got.Picks[models.SideA] {
		assert.NotContains(t, got.Picks[models.SideB], it)
		assert.NotContains(t, got.Bans[models.SideB], it)
	}
}

func TestSimultaneousModeCompletesBothSides(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := &models.Draft{
		ID:     "d1",
		Mode:   models.ModeBlitz,
		Status: models.DraftStatusActive,
		SubPools: map[models.Side][]string{
			models.SideA: {"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"},
			models.SideB: {"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8"},
		},
		SharedTimerStart: timeutil.At(testEpoch.Add(-61 * time.Second)),
	}
	st.SeedDraft(d)

	res, err := e.ProcessTimer(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Completed)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, got.Status)
	assert.Len(t, got.Picks[models.SideA], 8)
	assert.Len(t, got.Picks[models.SideB], 8)
	for _, it := range got.Picks[models.SideA] {
		assert.Contains(t, d.SubPools[models.SideA], it)
	}
}

func TestPreparationClearsAfterDelay(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 5)
	d.InPreparation = true
	d.PreparationStart = timeutil.At(testEpoch.Add(-1 * time.Second))
	st.SeedDraft(d)

	// 1.0s elapsed: not yet.
	res, err := e.ProcessPreparation(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	clock.Advance(600 * time.Millisecond)
	res, err = e.ProcessPreparation(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, got.InPreparation)
	_, ok := got.TimerStart[models.SideB].Time()
	assert.True(t, ok, "timer for the now-current side must start")
}

func TestPreparationMissingTimestampSelfHeals(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := activeStandardDraft("d1", 5)
	d.InPreparation = true
	st.SeedDraft(d)

	res, err := e.ProcessPreparation(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, got.PreparationStart.IsZero())
	assert.True(t, got.InPreparation)
}

func TestPromotePoolShuffle(t *testing.T) {
	st := store.NewMemory()
	clock := clockwork.NewFakeClockAt(testEpoch)
	e := newEngine(st, clock)

	d := &models.Draft{
		ID:             "d1",
		Mode:           models.ModeBlitz,
		Status:         models.DraftStatusPoolShuffle,
		PoolShuffledAt: timeutil.At(testEpoch.Add(-6 * time.Second)),
	}
	st.SeedDraft(d)

	res, err := e.PromotePoolShuffle(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := st.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusActive, got.Status)
	assert.True(t, got.InPreparation)
}
