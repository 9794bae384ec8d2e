package session

import (
	"fmt"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
)

const (
	msgExcludedForBalance = "You were removed from the queue due to team balance requirements."
	msgMissingSpawn       = "Error: Spawn point not configured for this map."
	msgEliminated         = "You have been eliminated and teleported to spawn."
)

func countdownMessage(arenaName string, seconds int) string {
	return fmt.Sprintf("A match on map %s will start in %d seconds", arenaName, seconds)
}

func teamMessage(mode arena.TeamMode, team int) string {
	if !mode.HasTeams() {
		return "Game started! Fight for yourself!"
	}
	return fmt.Sprintf("You are on Team %d!", team+1)
}

func queuedMessage(arenaName string, queued, required int) string {
	return fmt.Sprintf("You have been queued for map '%s'. Players: %d/%d", arenaName, queued, required)
}

func joinedMessage(name string, queued, required int) string {
	return fmt.Sprintf("%s joined the queue. Players: %d/%d", name, queued, required)
}
