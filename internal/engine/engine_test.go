package engine

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
)

// ids returns n deterministic, ascending player IDs.
func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1))
	}
	return out
}

func noShuffle([]uuid.UUID) {}

func teamSizes(a Assignment) map[int]int {
	sizes := map[int]int{}
	for _, t := range a.Teams {
		sizes[t]++
	}
	return sizes
}

func TestAssignTeams_BalancesAndExcludesOverflow(t *testing.T) {
	cases := []struct {
		name         string
		mode         arena.TeamMode
		players      int
		wantAssigned int
		wantExcluded int
		wantPerTeam  int
	}{
		{name: "two teams, five players", mode: arena.TwoTeams, players: 5, wantAssigned: 4, wantExcluded: 1, wantPerTeam: 2},
		{name: "two teams, six players", mode: arena.TwoTeams, players: 6, wantAssigned: 6, wantExcluded: 0, wantPerTeam: 3},
		{name: "three teams, seven players", mode: arena.ThreeTeams, players: 7, wantAssigned: 6, wantExcluded: 1, wantPerTeam: 2},
		{name: "three teams, two players", mode: arena.ThreeTeams, players: 2, wantAssigned: 0, wantExcluded: 2, wantPerTeam: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := AssignTeams(ids(tc.players), tc.mode, noShuffle)
			if len(a.Assigned) != tc.wantAssigned {
				t.Fatalf("assigned: got %d, want %d", len(a.Assigned), tc.wantAssigned)
			}
			if len(a.Excluded) != tc.wantExcluded {
				t.Fatalf("excluded: got %d, want %d", len(a.Excluded), tc.wantExcluded)
			}
			if len(a.Teams) != tc.wantAssigned {
				t.Fatalf("team entries: got %d, want %d", len(a.Teams), tc.wantAssigned)
			}
			for team, size := range teamSizes(a) {
				if size != tc.wantPerTeam {
					t.Fatalf("team %d has %d players, want %d", team, size, tc.wantPerTeam)
				}
			}
			for _, id := range a.Excluded {
				if _, ok := a.Teams[id]; ok {
					t.Fatalf("excluded player %s must not have a team", id)
				}
			}
		})
	}
}

func TestAssignTeams_FreeForAllAssignsEveryoneWithoutTeams(t *testing.T) {
	a := AssignTeams(ids(3), arena.FreeForAll, noShuffle)
	if len(a.Assigned) != 3 || len(a.Excluded) != 0 {
		t.Fatalf("got assigned=%d excluded=%d", len(a.Assigned), len(a.Excluded))
	}
	if len(a.Teams) != 0 {
		t.Fatalf("free-for-all must not create team entries, got %v", a.Teams)
	}
}

func TestAssignTeams_UsesShuffleAndDoesNotMutateInput(t *testing.T) {
	in := ids(4)
	reverse := func(s []uuid.UUID) {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
	}
	a := AssignTeams(in, arena.TwoTeams, reverse)

	if in[0] != ids(4)[0] {
		t.Fatalf("input slice was mutated")
	}
	if a.Teams[in[3]] != 0 || a.Teams[in[2]] != 1 {
		t.Fatalf("expected position-modulo teams after shuffle, got %v", a.Teams)
	}
}

func TestWinConditionMet(t *testing.T) {
	p := ids(4)
	teams := map[uuid.UUID]int{p[0]: 0, p[1]: 0, p[2]: 1, p[3]: 1}

	cases := []struct {
		name   string
		mode   arena.TeamMode
		active []uuid.UUID
		want   bool
	}{
		{"ffa three left", arena.FreeForAll, p[:3], false},
		{"ffa one left", arena.FreeForAll, p[:1], true},
		{"ffa none left", arena.FreeForAll, nil, true},
		{"teams both represented", arena.TwoTeams, p, false},
		{"teams only team 1 left", arena.TwoTeams, p[2:], true},
		{"teams mixed survivors", arena.TwoTeams, []uuid.UUID{p[0], p[3]}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WinConditionMet(tc.mode, tc.active, teams); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecideOutcome(t *testing.T) {
	p := ids(4)
	teams := map[uuid.UUID]int{p[0]: 0, p[1]: 0, p[2]: 1, p[3]: 1}
	names := func(id uuid.UUID) string {
		if id == p[1] {
			return "Maverick"
		}
		return ""
	}

	cases := []struct {
		name        string
		mode        arena.TeamMode
		active      []uuid.UUID
		wantKind    OutcomeKind
		wantWinners int
		wantMsg     string
	}{
		{"ffa single survivor", arena.FreeForAll, []uuid.UUID{p[1]}, OutcomeSolo, 1, "Maverick won the match!"},
		{"ffa unknown name", arena.FreeForAll, []uuid.UUID{p[2]}, OutcomeSolo, 1, "Unknown won the match!"},
		{"ffa forced end with survivors", arena.FreeForAll, p[:3], OutcomeDraw, 3, "The match ended in a draw!"},
		{"ffa nobody left", arena.FreeForAll, nil, OutcomeNone, 0, "The match ended with no winners."},
		{"team 2 survives", arena.TwoTeams, p[2:], OutcomeTeam, 2, "Team 2 won the match!"},
		{"teams nobody left", arena.TwoTeams, nil, OutcomeNone, 0, "The match ended with no winners."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := DecideOutcome(tc.mode, tc.active, teams)
			if o.Kind != tc.wantKind {
				t.Fatalf("kind: got %v, want %v", o.Kind, tc.wantKind)
			}
			if len(o.Winners) != tc.wantWinners {
				t.Fatalf("winners: got %d, want %d", len(o.Winners), tc.wantWinners)
			}
			if msg := o.Message(names); msg != tc.wantMsg {
				t.Fatalf("message: got %q, want %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestDecideOutcome_TeamPickIsDeterministic(t *testing.T) {
	p := ids(4)
	// p[0] (lowest ID) is on team 2, so team 2 wins regardless of input order.
	teams := map[uuid.UUID]int{p[0]: 1, p[1]: 0, p[2]: 1, p[3]: 0}
	active := []uuid.UUID{p[3], p[2], p[1], p[0]}

	for i := 0; i < 10; i++ {
		o := DecideOutcome(arena.TwoTeams, active, teams)
		if o.Team != 1 {
			t.Fatalf("run %d: winning team %d, want 1", i, o.Team)
		}
		if !o.IsWinner(p[0]) || !o.IsWinner(p[2]) || o.IsWinner(p[1]) {
			t.Fatalf("run %d: unexpected winners %v", i, o.Winners)
		}
	}
}
