package coinflip

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurorydraft2026/draftforge/internal/models"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/timeutil"
)

var testEpoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// prepareRecorder stands in for the assignment finalizer.
type prepareRecorder struct {
	prepared []string
}

func (p *prepareRecorder) Prepare(ctx context.Context, d *models.Draft) error {
	p.prepared = append(p.prepared, d.ID)
	d.Status = models.DraftStatusAssignment
	return nil
}

func seed(st *store.Memory, phase models.CoinFlipPhase, age time.Duration) {
	st.SeedDraft(&models.Draft{
		ID:     "d1",
		Status: models.DraftStatusCoinFlip,
		Mode:   models.ModeStandard,
		CoinFlip: &models.CoinFlip{
			Phase:          phase,
			PhaseChangedAt: timeutil.At(testEpoch.Add(-age)),
			WinnerSide:     models.SideA,
		},
	})
}

func newMachine(st *store.Memory, rec Assigner) *Machine {
	return New(st, clockwork.NewFakeClockAt(testEpoch), rand.New(rand.NewSource(5)), rec)
}

func TestSpinningAdvancesAfterDwellAndPicksWinner(t *testing.T) {
	st := store.NewMemory()
	st.SeedDraft(&models.Draft{
		ID:     "d1",
		Status: models.DraftStatusCoinFlip,
		CoinFlip: &models.CoinFlip{
			Phase:          models.CoinFlipSpinning,
			PhaseChangedAt: timeutil.At(testEpoch.Add(-6 * time.Second)),
		},
	})
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, _ := st.GetDraft(context.Background(), "d1")
	assert.Equal(t, models.CoinFlipResult, got.CoinFlip.Phase)
	assert.Contains(t, []models.Side{models.SideA, models.SideB}, got.CoinFlip.WinnerSide)
}

func TestSpinningWaitsOutDwell(t *testing.T) {
	st := store.NewMemory()
	seed(st, models.CoinFlipSpinning, 3*time.Second)
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestResultAdvancesToTurnChoice(t *testing.T) {
	st := store.NewMemory()
	seed(st, models.CoinFlipResult, 5*time.Second)
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, _ := st.GetDraft(context.Background(), "d1")
	assert.Equal(t, models.CoinFlipTurnChoice, got.CoinFlip.Phase)
}

func TestTurnChoiceTimeoutDefaultsToFirst(t *testing.T) {
	st := store.NewMemory()
	seed(st, models.CoinFlipTurnChoice, 121*time.Second)
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, _ := st.GetDraft(context.Background(), "d1")
	assert.Equal(t, models.CoinFlipDone, got.CoinFlip.Phase)
	assert.Equal(t, models.TurnChoiceFirst, got.CoinFlip.WinnerTurnChoice)
}

func TestTurnChoiceWaitsForWinner(t *testing.T) {
	st := store.NewMemory()
	seed(st, models.CoinFlipTurnChoice, 60*time.Second)
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied, "within the 120s window the machine must not override the winner")
}

func TestDoneInvokesAssignmentPrepare(t *testing.T) {
	st := store.NewMemory()
	seed(st, models.CoinFlipDone, 6*time.Second)
	rec := &prepareRecorder{}
	m := newMachine(st, rec)

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, []string{"d1"}, rec.prepared)

	got, _ := st.GetDraft(context.Background(), "d1")
	assert.Equal(t, models.DraftStatusAssignment, got.Status)
}

func TestMissingPhaseTimestampSelfHeals(t *testing.T) {
	st := store.NewMemory()
	st.SeedDraft(&models.Draft{
		ID:       "d1",
		Status:   models.DraftStatusCoinFlip,
		CoinFlip: &models.CoinFlip{Phase: models.CoinFlipSpinning},
	})
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	got, _ := st.GetDraft(context.Background(), "d1")
	assert.False(t, got.CoinFlip.PhaseChangedAt.IsZero())
	assert.Equal(t, models.CoinFlipSpinning, got.CoinFlip.Phase)
}

func TestProcessIgnoresDraftsPastCoinFlip(t *testing.T) {
	st := store.NewMemory()
	st.SeedDraft(&models.Draft{ID: "d1", Status: models.DraftStatusActive})
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestEntryWithNoSubStateCreatesSpinning(t *testing.T) {
	st := store.NewMemory()
	st.SeedDraft(&models.Draft{ID: "d1", Status: models.DraftStatusCoinFlip})
	m := newMachine(st, &prepareRecorder{})

	res, err := m.Process(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	got, _ := st.GetDraft(context.Background(), "d1")
	require.NotNil(t, got.CoinFlip)
	assert.Equal(t, models.CoinFlipSpinning, got.CoinFlip.Phase)
}
