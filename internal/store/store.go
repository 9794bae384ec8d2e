// Package store defines persistence for arena definitions, global settings
// and match history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

var ErrNotConfigured = errors.New("storage is not configured")

type Settings struct {
	Countdown  time.Duration   `json:"countdown"`
	Respawn    *arena.Location `json:"respawn,omitempty"`
	ServerName string          `json:"server_name"`
}

type MatchRecord struct {
	ID      int64              `json:"id"`
	Arena   string             `json:"arena"`
	Mode    arena.TeamMode     `json:"team_mode"`
	Outcome engine.OutcomeKind `json:"outcome"`
	Team    int                `json:"team"`
	Winners []uuid.UUID        `json:"winners"`
	Roster  []uuid.UUID        `json:"roster"`
	EndedAt time.Time          `json:"ended_at"`
}

// RecordFromResult flattens a resolved match for storage.
func RecordFromResult(res session.Result, endedAt time.Time) MatchRecord {
	return MatchRecord{
		Arena:   res.Arena,
		Mode:    res.Mode,
		Outcome: res.Outcome.Kind,
		Team:    res.Outcome.Team,
		Winners: append([]uuid.UUID(nil), res.Outcome.Winners...),
		Roster:  append([]uuid.UUID(nil), res.Roster...),
		EndedAt: endedAt.UTC(),
	}
}

type Store interface {
	// ListArenas returns definitions in the order they were saved.
	ListArenas(ctx context.Context) ([]arena.Definition, error)
	// SaveArenas replaces every stored definition.
	SaveArenas(ctx context.Context, defs []arena.Definition) error

	// LoadSettings reports ok == false if settings were never saved.
	LoadSettings(ctx context.Context) (s Settings, ok bool, err error)
	SaveSettings(ctx context.Context, s Settings) error

	RecordMatch(ctx context.Context, rec MatchRecord) error
	// ListMatches returns the newest records first.
	ListMatches(ctx context.Context, limit int) ([]MatchRecord, error)

	Close() error
}
