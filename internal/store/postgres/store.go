// Package postgres provides a gorm-backed PostgreSQL store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
)

type arenaModel struct {
	Name     string            `gorm:"primaryKey"`
	Position int               `gorm:"not null"`
	TeamMode string            `gorm:"not null"`
	Corner1  *arena.Location   `gorm:"serializer:json"`
	Corner2  *arena.Location   `gorm:"serializer:json"`
	Spawns   []*arena.Location `gorm:"serializer:json"`
}

func (arenaModel) TableName() string { return "arenas" }

type settingsModel struct {
	ID          uint `gorm:"primaryKey"`
	CountdownMS int64
	Respawn     *arena.Location `gorm:"serializer:json"`
	ServerName  string
}

func (settingsModel) TableName() string { return "settings" }

type matchModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Arena    string `gorm:"not null"`
	TeamMode string `gorm:"not null"`
	Outcome  string `gorm:"not null"`
	Team     int
	Winners  []uuid.UUID `gorm:"serializer:json"`
	Roster   []uuid.UUID `gorm:"serializer:json"`
	EndedAt  time.Time   `gorm:"index"`
}

func (matchModel) TableName() string { return "matches" }

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{db: db}
	if err := db.WithContext(ctx).AutoMigrate(&arenaModel{}, &settingsModel{}, &matchModel{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListArenas(ctx context.Context) ([]arena.Definition, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrNotConfigured
	}
	var rows []arenaModel
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query arenas: %w", err)
	}
	defs := make([]arena.Definition, 0, len(rows))
	for _, row := range rows {
		def, err := row.definition()
		if err != nil {
			return nil, fmt.Errorf("arena %q: %w", row.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (s *Store) SaveArenas(ctx context.Context, defs []arena.Definition) error {
	if s == nil || s.db == nil {
		return store.ErrNotConfigured
	}
	rows := make([]arenaModel, len(defs))
	for i, def := range defs {
		rows[i] = toArenaModel(def, i)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&arenaModel{}).Error; err != nil {
			return fmt.Errorf("clear arenas: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert arenas: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadSettings(ctx context.Context) (store.Settings, bool, error) {
	if s == nil || s.db == nil {
		return store.Settings{}, false, store.ErrNotConfigured
	}
	var row settingsModel
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Settings{}, false, nil
	}
	if err != nil {
		return store.Settings{}, false, fmt.Errorf("query settings: %w", err)
	}
	return row.settings(), true, nil
}

func (s *Store) SaveSettings(ctx context.Context, st store.Settings) error {
	if s == nil || s.db == nil {
		return store.ErrNotConfigured
	}
	row := toSettingsModel(st)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) RecordMatch(ctx context.Context, rec store.MatchRecord) error {
	if s == nil || s.db == nil {
		return store.ErrNotConfigured
	}
	row := toMatchModel(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, limit int) ([]store.MatchRecord, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrNotConfigured
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []matchModel
	if err := s.db.WithContext(ctx).Order("ended_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	out := make([]store.MatchRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

func toArenaModel(def arena.Definition, position int) arenaModel {
	return arenaModel{
		Name:     def.Name,
		Position: position,
		TeamMode: string(def.Mode),
		Corner1:  def.Corner1,
		Corner2:  def.Corner2,
		Spawns:   def.Spawns,
	}
}

func (m arenaModel) definition() (arena.Definition, error) {
	return arena.New(m.Name, arena.TeamMode(m.TeamMode), m.Corner1, m.Corner2, m.Spawns)
}

func toSettingsModel(st store.Settings) settingsModel {
	return settingsModel{
		ID:          1,
		CountdownMS: st.Countdown.Milliseconds(),
		Respawn:     st.Respawn,
		ServerName:  st.ServerName,
	}
}

func (m settingsModel) settings() store.Settings {
	return store.Settings{
		Countdown:  time.Duration(m.CountdownMS) * time.Millisecond,
		Respawn:    m.Respawn,
		ServerName: m.ServerName,
	}
}

func toMatchModel(rec store.MatchRecord) matchModel {
	return matchModel{
		Arena:    rec.Arena,
		TeamMode: string(rec.Mode),
		Outcome:  string(rec.Outcome),
		Team:     rec.Team,
		Winners:  rec.Winners,
		Roster:   rec.Roster,
		EndedAt:  rec.EndedAt.UTC(),
	}
}

func (m matchModel) record() store.MatchRecord {
	return store.MatchRecord{
		ID:      m.ID,
		Arena:   m.Arena,
		Mode:    arena.TeamMode(m.TeamMode),
		Outcome: engine.OutcomeKind(m.Outcome),
		Team:    m.Team,
		Winners: m.Winners,
		Roster:  m.Roster,
		EndedAt: m.EndedAt.UTC(),
	}
}
