// Package sqlite provides the embedded SQLite store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store/sqlite/migrations"
)

type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ListArenas(ctx context.Context) ([]arena.Definition, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrNotConfigured
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, team_mode, corner1, corner2, spawns FROM arenas ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query arenas: %w", err)
	}
	defer rows.Close()

	var defs []arena.Definition
	for rows.Next() {
		var (
			name, mode, spawnsJSON string
			c1, c2                 sql.NullString
		)
		if err := rows.Scan(&name, &mode, &c1, &c2, &spawnsJSON); err != nil {
			return nil, fmt.Errorf("scan arena: %w", err)
		}
		def, err := decodeArena(name, mode, c1, c2, spawnsJSON)
		if err != nil {
			return nil, fmt.Errorf("arena %q: %w", name, err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arenas: %w", err)
	}
	return defs, nil
}

func decodeArena(name, mode string, c1, c2 sql.NullString, spawnsJSON string) (arena.Definition, error) {
	corner1, err := decodeLoc(c1)
	if err != nil {
		return arena.Definition{}, fmt.Errorf("corner1: %w", err)
	}
	corner2, err := decodeLoc(c2)
	if err != nil {
		return arena.Definition{}, fmt.Errorf("corner2: %w", err)
	}
	var spawns []*arena.Location
	if err := json.Unmarshal([]byte(spawnsJSON), &spawns); err != nil {
		return arena.Definition{}, fmt.Errorf("spawns: %w", err)
	}
	return arena.New(name, arena.TeamMode(mode), corner1, corner2, spawns)
}

func (s *Store) SaveArenas(ctx context.Context, defs []arena.Definition) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrNotConfigured
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM arenas`); err != nil {
		return fmt.Errorf("clear arenas: %w", err)
	}
	for i, def := range defs {
		c1, err := encodeLoc(def.Corner1)
		if err != nil {
			return err
		}
		c2, err := encodeLoc(def.Corner2)
		if err != nil {
			return err
		}
		spawns, err := json.Marshal(def.Spawns)
		if err != nil {
			return fmt.Errorf("encode spawns: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO arenas (name, position, team_mode, corner1, corner2, spawns) VALUES (?, ?, ?, ?, ?, ?)`,
			def.Name, i, string(def.Mode), c1, c2, string(spawns),
		); err != nil {
			return fmt.Errorf("insert arena %q: %w", def.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) LoadSettings(ctx context.Context) (store.Settings, bool, error) {
	if s == nil || s.sqlDB == nil {
		return store.Settings{}, false, store.ErrNotConfigured
	}
	var (
		countdownMS int64
		respawn     sql.NullString
		serverName  string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT countdown_ms, respawn, server_name FROM settings WHERE id = 1`,
	).Scan(&countdownMS, &respawn, &serverName)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Settings{}, false, nil
	}
	if err != nil {
		return store.Settings{}, false, fmt.Errorf("query settings: %w", err)
	}
	loc, err := decodeLoc(respawn)
	if err != nil {
		return store.Settings{}, false, fmt.Errorf("respawn: %w", err)
	}
	return store.Settings{
		Countdown:  time.Duration(countdownMS) * time.Millisecond,
		Respawn:    loc,
		ServerName: serverName,
	}, true, nil
}

func (s *Store) SaveSettings(ctx context.Context, st store.Settings) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrNotConfigured
	}
	respawn, err := encodeLoc(st.Respawn)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (id, countdown_ms, respawn, server_name) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   countdown_ms = excluded.countdown_ms,
		   respawn = excluded.respawn,
		   server_name = excluded.server_name`,
		st.Countdown.Milliseconds(), respawn, st.ServerName,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) RecordMatch(ctx context.Context, rec store.MatchRecord) error {
	if s == nil || s.sqlDB == nil {
		return store.ErrNotConfigured
	}
	winners, err := json.Marshal(nonNil(rec.Winners))
	if err != nil {
		return fmt.Errorf("encode winners: %w", err)
	}
	roster, err := json.Marshal(nonNil(rec.Roster))
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO matches (arena, team_mode, outcome, team, winners, roster, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Arena, string(rec.Mode), string(rec.Outcome), rec.Team,
		string(winners), string(roster), rec.EndedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, limit int) ([]store.MatchRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.ErrNotConfigured
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, arena, team_mode, outcome, team, winners, roster, ended_at
		 FROM matches ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []store.MatchRecord
	for rows.Next() {
		var (
			rec             store.MatchRecord
			mode, outcome   string
			winners, roster string
			endedAt         int64
		)
		if err := rows.Scan(&rec.ID, &rec.Arena, &mode, &outcome, &rec.Team, &winners, &roster, &endedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		rec.Mode = arena.TeamMode(mode)
		rec.Outcome = engine.OutcomeKind(outcome)
		rec.EndedAt = time.UnixMilli(endedAt).UTC()
		if err := json.Unmarshal([]byte(winners), &rec.Winners); err != nil {
			return nil, fmt.Errorf("match %d winners: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(roster), &rec.Roster); err != nil {
			return nil, fmt.Errorf("match %d roster: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func encodeLoc(loc *arena.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode location: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeLoc(v sql.NullString) (*arena.Location, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var loc arena.Location
	if err := json.Unmarshal([]byte(v.String), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
