package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredSpawnsPerMode(t *testing.T) {
	cases := []struct {
		mode    TeamMode
		spawns  int
		players int
	}{
		{FreeForAll, 1, 2},
		{TwoTeams, 2, 2},
		{ThreeTeams, 3, 3},
	}

	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			assert.Equal(t, tc.spawns, RequiredSpawns(tc.mode))
			assert.Equal(t, tc.players, RequiredPlayers(tc.mode))

			d, err := New("sky", tc.mode, nil, nil, nil)
			require.NoError(t, err)
			assert.Len(t, d.Spawns, tc.spawns)
		})
	}
}

func TestModeChangeResizesSpawns(t *testing.T) {
	a := Location{World: "w", X: 1}
	b := Location{World: "w", X: 2}
	c := Location{World: "w", X: 3}

	d, err := New("canyon", ThreeTeams, nil, nil, []*Location{&a, &b, &c})
	require.NoError(t, err)

	two, err := d.WithMode(TwoTeams)
	require.NoError(t, err)
	require.Len(t, two.Spawns, 2)
	assert.Equal(t, 1.0, two.Spawns[0].X)
	assert.Equal(t, 2.0, two.Spawns[1].X)

	back, err := two.WithMode(ThreeTeams)
	require.NoError(t, err)
	require.Len(t, back.Spawns, 3)
	assert.Nil(t, back.Spawns[2], "padded slot must be unset, not reassigned")

	// original is untouched
	assert.Len(t, d.Spawns, 3)
	assert.Equal(t, 3.0, d.Spawns[2].X)
}

func TestNewTruncatesOversizedSpawnList(t *testing.T) {
	a := Location{X: 1}
	b := Location{X: 2}
	d, err := New("ffa", FreeForAll, nil, nil, []*Location{&a, &b})
	require.NoError(t, err)
	require.Len(t, d.Spawns, 1)
	assert.Equal(t, 1.0, d.Spawns[0].X)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("  ", FreeForAll, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrEmptyName))

	_, err = New("x", TeamMode("FOUR_TEAMS"), nil, nil, nil)
	assert.True(t, errors.Is(err, ErrUnknownTeamMode))
}

func TestWithSpawnAndCorner(t *testing.T) {
	d, err := New("dunes", TwoTeams, nil, nil, nil)
	require.NoError(t, err)

	_, err = d.WithSpawn(2, Location{})
	assert.ErrorIs(t, err, ErrSpawnOutOfRange)

	d2, err := d.WithSpawn(1, Location{World: "w", Y: 64})
	require.NoError(t, err)
	assert.Nil(t, d2.Spawn(0))
	require.NotNil(t, d2.Spawn(1))
	assert.Equal(t, 64.0, d2.Spawn(1).Y)
	assert.Nil(t, d.Spawn(1), "WithSpawn must not mutate the receiver")

	_, err = d2.WithCorner(3, Location{})
	assert.ErrorIs(t, err, ErrCornerOutOfRange)

	d3, err := d2.WithCorner(1, Location{X: 10})
	require.NoError(t, err)
	require.NotNil(t, d3.Corner1)
	assert.Nil(t, d3.Corner2)
}

func TestSpawnName(t *testing.T) {
	ffa, _ := New("a", FreeForAll, nil, nil, nil)
	assert.Equal(t, "spawn", ffa.SpawnName(0))

	teams, _ := New("b", ThreeTeams, nil, nil, nil)
	assert.Equal(t, "team3spawn", teams.SpawnName(2))
}

func TestParseTeamMode(t *testing.T) {
	cases := []struct {
		in      string
		want    TeamMode
		wantErr bool
	}{
		{"FREE_FOR_ALL", FreeForAll, false},
		{"two_teams", TwoTeams, false},
		{" three-teams ", ThreeTeams, false},
		{"solo", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTeamMode(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownTeamMode)
				assert.Contains(t, err.Error(), "FREE_FOR_ALL TWO_TEAMS THREE_TEAMS")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocationString(t *testing.T) {
	l := Location{World: "sky", X: 1, Y: 64.5, Z: -3}
	assert.Equal(t, "sky(1.0, 64.5, -3.0)", l.String())
}
