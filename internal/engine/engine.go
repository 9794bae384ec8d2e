// Package engine holds the pure match rules: team assignment, the win
// condition and winner selection. Nothing here touches players or timers.
package engine

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
)

// NoTeam is reported for players without a team entry (free-for-all or unassigned).
const NoTeam = -1

type Assignment struct {
	Teams    map[uuid.UUID]int // empty in free-for-all
	Assigned []uuid.UUID       // in shuffled order
	Excluded []uuid.UUID       // dropped to keep teams even
}

// AssignTeams shuffles players and splits them evenly across the mode's teams.
// Players that don't fit an even split are returned in Excluded.
func AssignTeams(players []uuid.UUID, mode arena.TeamMode, shuffle func([]uuid.UUID)) Assignment {
	list := slices.Clone(players)
	a := Assignment{Teams: map[uuid.UUID]int{}}

	k := arena.Rules(mode).TeamCount
	if k == 0 {
		a.Assigned = list
		return a
	}

	usable := (len(list) / k) * k
	if shuffle != nil {
		shuffle(list)
	}
	for i, id := range list[:usable] {
		a.Teams[id] = i % k
	}
	a.Assigned = list[:usable]
	a.Excluded = list[usable:]
	return a
}

// WinConditionMet reports whether at most one player (free-for-all) or one
// team (team modes) is still represented among active players.
func WinConditionMet(mode arena.TeamMode, active []uuid.UUID, teams map[uuid.UUID]int) bool {
	if !mode.HasTeams() {
		return len(active) <= 1
	}
	return countTeams(active, teams) <= 1
}

func countTeams(active []uuid.UUID, teams map[uuid.UUID]int) int {
	seen := map[int]struct{}{}
	for _, id := range active {
		if t, ok := teams[id]; ok {
			seen[t] = struct{}{}
		}
	}
	return len(seen)
}

type OutcomeKind string

const (
	OutcomeNone OutcomeKind = "none"
	OutcomeSolo OutcomeKind = "solo"
	OutcomeDraw OutcomeKind = "draw"
	OutcomeTeam OutcomeKind = "team"
)

type Outcome struct {
	Kind    OutcomeKind
	Team    int // NoTeam unless Kind == OutcomeTeam
	Winners []uuid.UUID
}

// DecideOutcome picks the winners among the players still active.
// In team modes the team of the lowest player ID wins.
func DecideOutcome(mode arena.TeamMode, active []uuid.UUID, teams map[uuid.UUID]int) Outcome {
	ids := SortedIDs(active)

	if !mode.HasTeams() {
		switch len(ids) {
		case 0:
			return Outcome{Kind: OutcomeNone, Team: NoTeam}
		case 1:
			return Outcome{Kind: OutcomeSolo, Team: NoTeam, Winners: ids}
		default:
			return Outcome{Kind: OutcomeDraw, Team: NoTeam, Winners: ids}
		}
	}

	winning := NoTeam
	for _, id := range ids {
		if t, ok := teams[id]; ok {
			winning = t
			break
		}
	}
	if winning == NoTeam {
		return Outcome{Kind: OutcomeNone, Team: NoTeam}
	}

	var winners []uuid.UUID
	for _, id := range ids {
		if t, ok := teams[id]; ok && t == winning {
			winners = append(winners, id)
		}
	}
	return Outcome{Kind: OutcomeTeam, Team: winning, Winners: winners}
}

func (o Outcome) IsWinner(id uuid.UUID) bool {
	return slices.Contains(o.Winners, id)
}

// Message is the announcement sent to everyone who started the match.
func (o Outcome) Message(nameOf func(uuid.UUID) string) string {
	switch o.Kind {
	case OutcomeSolo:
		name := "Unknown"
		if nameOf != nil {
			if n := nameOf(o.Winners[0]); n != "" {
				name = n
			}
		}
		return fmt.Sprintf("%s won the match!", name)
	case OutcomeDraw:
		return "The match ended in a draw!"
	case OutcomeTeam:
		return fmt.Sprintf("Team %d won the match!", o.Team+1)
	default:
		return "The match ended with no winners."
	}
}

// SortedIDs returns a copy of ids ordered by their string form.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return compareIDs(a, b)
	})
	return out
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
