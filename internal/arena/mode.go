package arena

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrUnknownTeamMode = errors.New("unknown team mode")

type TeamMode string

const (
	FreeForAll TeamMode = "FREE_FOR_ALL"
	TwoTeams   TeamMode = "TWO_TEAMS"
	ThreeTeams TeamMode = "THREE_TEAMS"
)

// ModeRules holds everything that varies with the team mode.
type ModeRules struct {
	RequiredPlayers int
	RequiredSpawns  int
	TeamCount       int // 0 means no team assignment (free-for-all)
}

var modeTable = map[TeamMode]ModeRules{
	FreeForAll: {RequiredPlayers: 2, RequiredSpawns: 1, TeamCount: 0},
	TwoTeams:   {RequiredPlayers: 2, RequiredSpawns: 2, TeamCount: 2},
	ThreeTeams: {RequiredPlayers: 3, RequiredSpawns: 3, TeamCount: 3},
}

// Modes lists the supported team modes in display order.
var Modes = []TeamMode{FreeForAll, TwoTeams, ThreeTeams}

// Rules returns the table entry for m. Unknown modes fall back to free-for-all.
func Rules(m TeamMode) ModeRules {
	if r, ok := modeTable[m]; ok {
		return r
	}
	return modeTable[FreeForAll]
}

func RequiredSpawns(m TeamMode) int { return Rules(m).RequiredSpawns }
func RequiredPlayers(m TeamMode) int { return Rules(m).RequiredPlayers }

func (m TeamMode) Valid() bool {
	_, ok := modeTable[m]
	return ok
}

func (m TeamMode) HasTeams() bool { return Rules(m).TeamCount > 0 }

var upper = cases.Upper(language.Und)

// ParseTeamMode accepts any casing and either '_' or '-' separators.
func ParseTeamMode(s string) (TeamMode, error) {
	norm := strings.ReplaceAll(upper.String(strings.TrimSpace(s)), "-", "_")
	m := TeamMode(norm)
	if !m.Valid() {
		return "", fmt.Errorf("%w %q, want one of %v", ErrUnknownTeamMode, s, Modes)
	}
	return m, nil
}
