package phases

import (
	"math/rand"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

// NoopBan is the placeholder recorded when a ban phase times out with no
// choice made. It appears in the locked-phase history only and must never
// be added to a side's real ban list.
const NoopBan = "noop_ban"

// Shuffle permutes items in place using Fisher-Yates.
func Shuffle(rng *rand.Rand, items []string) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Available returns the items a side may still legally select. The acting
// side's own picks and bans are always excluded; unless the mode permits
// roster overlap, the opposing side's picks are excluded too. Blitz drafts
// draw from the side's shuffled sub-pool instead of the shared pool.
func Available(cfg Config, d *models.Draft, side models.Side) []string {
	pool := d.Pool
	if cfg.SplitPool && d.SubPools != nil {
		pool = d.SubPools[side]
	}

	taken := make(map[string]bool)
	for _, it := range d.Picks[side] {
		taken[it] = true
	}
	for _, it := range d.Bans[side] {
		taken[it] = true
	}
	if !cfg.OverlapAllowed {
		opp := side.Opponent()
		for _, it := range d.Picks[opp] {
			taken[it] = true
		}
		for _, it := range d.Bans[opp] {
			taken[it] = true
		}
	}

	out := make([]string, 0, len(pool))
	for _, it := range pool {
		if !taken[it] {
			out = append(out, it)
		}
	}
	return out
}

// DrawRandom removes and returns one uniformly chosen item from items.
// Returns "" when nothing is available.
func DrawRandom(rng *rand.Rand, items []string) (string, []string) {
	if len(items) == 0 {
		return "", items
	}
	i := rng.Intn(len(items))
	chosen := items[i]
	items[i] = items[len(items)-1]
	return chosen, items[:len(items)-1]
}
