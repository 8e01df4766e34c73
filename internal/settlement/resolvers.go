package settlement

import (
	"errors"
	"fmt"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

// ErrNoWinnerIdentity means no resolver produced a payable identifier.
// This is a data-integrity failure for the draft; no ledger mutation may
// have happened by the time it is raised.
var ErrNoWinnerIdentity = errors.New("settlement: no winner identifier across any source")

// WinnerResolver maps a winning side to a payable user identifier. The
// draft schema drifted over the entity's lifetime, so resolution is an
// ordered chain of strategies tried until one yields a non-empty id.
type WinnerResolver interface {
	Name() string
	Resolve(d *models.Draft, winner models.Side) (string, bool)
}

// LeaderFieldResolver reads the designated-leader field on the draft.
type LeaderFieldResolver struct{}

func (LeaderFieldResolver) Name() string { return "leader_field" }

func (LeaderFieldResolver) Resolve(d *models.Draft, winner models.Side) (string, bool) {
	id, ok := d.Leaders[winner]
	return id, ok && id != ""
}

// MatchPlayersResolver reads the resolved match-player list.
type MatchPlayersResolver struct{}

func (MatchPlayersResolver) Name() string { return "match_players" }

func (MatchPlayersResolver) Resolve(d *models.Draft, winner models.Side) (string, bool) {
	for _, mp := range d.MatchPlayers {
		if mp.Side == winner && mp.UserID != "" {
			return mp.UserID, true
		}
	}
	return "", false
}

// AssignmentListResolver reads the team-keyed assignment-leader record,
// then the flattened assignment list, preferring the member tagged as
// leader.
type AssignmentListResolver struct{}

func (AssignmentListResolver) Name() string { return "assignment_list" }

func (AssignmentListResolver) Resolve(d *models.Draft, winner models.Side) (string, bool) {
	key := "teamA"
	if winner == models.SideB {
		key = "teamB"
	}
	if id := d.AssignmentLeaders[key]; id != "" {
		return id, true
	}

	var fallback string
	for _, m := range d.FinalAssignments {
		if m.Team != winner || m.UserID == "" {
			continue
		}
		if m.Leader {
			return m.UserID, true
		}
		if fallback == "" {
			fallback = m.UserID
		}
	}
	return fallback, fallback != ""
}

// PermissionsResolver scans the permissions map for the side's leader role.
type PermissionsResolver struct{}

func (PermissionsResolver) Name() string { return "permissions" }

func (PermissionsResolver) Resolve(d *models.Draft, winner models.Side) (string, bool) {
	want := fmt.Sprintf("leader%s", winner)
	for userID, role := range d.Permissions {
		if role == want && userID != "" {
			return userID, true
		}
	}
	return "", false
}

// DefaultResolvers is the chain in fallback order.
func DefaultResolvers() []WinnerResolver {
	return []WinnerResolver{
		LeaderFieldResolver{},
		MatchPlayersResolver{},
		AssignmentListResolver{},
		PermissionsResolver{},
	}
}

// resolveWinner walks the chain and returns the first non-empty identifier.
func resolveWinner(resolvers []WinnerResolver, d *models.Draft, winner models.Side) (string, string, error) {
	for _, r := range resolvers {
		if id, ok := r.Resolve(d, winner); ok {
			return id, r.Name(), nil
		}
	}
	return "", "", fmt.Errorf("draft %s side %s: %w", d.ID, winner, ErrNoWinnerIdentity)
}
