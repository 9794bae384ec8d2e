// Package maps keeps the list of arena definitions and the global match
// settings, persists them, and keeps the hub's sessions in step with them.
package maps

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
)

var (
	ErrArenaExists      = errors.New("arena already exists")
	ErrArenaNotFound    = errors.New("arena not found")
	ErrInvalidCountdown = errors.New("countdown must be between 0s and 1h")
)

// MaxCountdown bounds the pre-match countdown.
const MaxCountdown = time.Hour

// Sessions is the part of the hub the registry drives.
type Sessions interface {
	CreateSession(ctx context.Context, def arena.Definition) error
	RemoveSession(ctx context.Context, name string) (bool, error)
	ReplaceSession(ctx context.Context, old string, def arena.Definition) error
	SetCountdown(ctx context.Context, d time.Duration) error
	SetRespawn(ctx context.Context, loc *arena.Location) error
}

type Registry struct {
	mu       sync.Mutex
	defs     []arena.Definition
	settings store.Settings

	store    store.Store
	sessions Sessions
	log      *zap.Logger
}

func NewRegistry(st store.Store, sessions Sessions, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: st, sessions: sessions, log: log.Named("maps")}
}

// Load reads settings and arenas from the store and registers a session for
// every arena. defaults apply when settings were never saved.
func (r *Registry) Load(ctx context.Context, defaults store.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, ok, err := r.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		settings = defaults
	}
	defs, err := r.store.ListArenas(ctx)
	if err != nil {
		return fmt.Errorf("load arenas: %w", err)
	}

	if err := r.sessions.SetCountdown(ctx, settings.Countdown); err != nil {
		return err
	}
	if err := r.sessions.SetRespawn(ctx, settings.Respawn); err != nil {
		return err
	}
	for _, def := range defs {
		if err := r.sessions.CreateSession(ctx, def); err != nil {
			return fmt.Errorf("register %q: %w", def.Name, err)
		}
	}
	r.settings = settings
	r.defs = defs
	r.log.Info("arenas loaded", zap.Int("count", len(defs)), zap.Duration("countdown", settings.Countdown))
	return nil
}

func (r *Registry) Get(name string) (arena.Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(name); i >= 0 {
		return r.defs[i], true
	}
	return arena.Definition{}, false
}

func (r *Registry) List() []arena.Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.defs)
}

// Add registers a new free-for-all arena with nothing configured yet.
func (r *Registry) Add(ctx context.Context, name string) (arena.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, err := arena.New(name, arena.FreeForAll, nil, nil, nil)
	if err != nil {
		return arena.Definition{}, err
	}
	if r.index(def.Name) >= 0 {
		return arena.Definition{}, ErrArenaExists
	}
	if err := r.sessions.CreateSession(ctx, def); err != nil {
		return arena.Definition{}, err
	}
	r.defs = append(r.defs, def)
	if err := r.saveArenas(ctx); err != nil {
		r.defs = r.defs[:len(r.defs)-1]
		r.undo(ctx, "add", def.Name, func(ctx context.Context) error {
			_, err := r.sessions.RemoveSession(ctx, def.Name)
			return err
		})
		return arena.Definition{}, err
	}
	r.log.Info("arena added", zap.String("arena", def.Name))
	return def, nil
}

// Remove always succeeds for a known arena. A running match is abandoned.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(name)
	if i < 0 {
		return ErrArenaNotFound
	}
	old := r.defs[i]
	if _, err := r.sessions.RemoveSession(ctx, name); err != nil {
		return err
	}
	r.defs = slices.Delete(r.defs, i, i+1)
	if err := r.saveArenas(ctx); err != nil {
		r.defs = slices.Insert(r.defs, i, old)
		r.undo(ctx, "remove", name, func(ctx context.Context) error {
			return r.sessions.CreateSession(ctx, old)
		})
		return err
	}
	r.log.Info("arena removed", zap.String("arena", name))
	return nil
}

func (r *Registry) SetCorner(ctx context.Context, name string, which int, loc arena.Location) (arena.Definition, error) {
	return r.edit(ctx, name, func(d arena.Definition) (arena.Definition, error) {
		return d.WithCorner(which, loc)
	})
}

// SetSpawn sets the spawn for a zero-based team index.
func (r *Registry) SetSpawn(ctx context.Context, name string, index int, loc arena.Location) (arena.Definition, error) {
	return r.edit(ctx, name, func(d arena.Definition) (arena.Definition, error) {
		return d.WithSpawn(index, loc)
	})
}

// Update applies a team mode change and a rename as one edit. Nil fields
// are left alone.
func (r *Registry) Update(ctx context.Context, name string, mode *arena.TeamMode, newName *string) (arena.Definition, error) {
	if mode == nil && newName == nil {
		if def, ok := r.Get(name); ok {
			return def, nil
		}
		return arena.Definition{}, ErrArenaNotFound
	}
	return r.edit(ctx, name, func(d arena.Definition) (arena.Definition, error) {
		var err error
		if mode != nil {
			if d, err = d.WithMode(*mode); err != nil {
				return arena.Definition{}, err
			}
		}
		if newName != nil {
			return r.renamed(d, *newName)
		}
		return d, nil
	})
}

func (r *Registry) renamed(d arena.Definition, newName string) (arena.Definition, error) {
	newName = strings.TrimSpace(newName)
	if newName != d.Name && r.index(newName) >= 0 {
		return arena.Definition{}, ErrArenaExists
	}
	return d.WithName(newName)
}

// edit applies fn and re-registers the arena's session. The hub refuses
// the swap while a match is running there.
func (r *Registry) edit(ctx context.Context, name string, fn func(arena.Definition) (arena.Definition, error)) (arena.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(name)
	if i < 0 {
		return arena.Definition{}, ErrArenaNotFound
	}
	prev := r.defs[i]
	next, err := fn(prev)
	if err != nil {
		return arena.Definition{}, err
	}
	if err := r.sessions.ReplaceSession(ctx, name, next); err != nil {
		return arena.Definition{}, fmt.Errorf("update %q: %w", name, err)
	}
	r.defs[i] = next
	if err := r.saveArenas(ctx); err != nil {
		r.defs[i] = prev
		r.undo(ctx, "update", name, func(ctx context.Context) error {
			return r.sessions.ReplaceSession(ctx, next.Name, prev)
		})
		return arena.Definition{}, err
	}
	r.log.Info("arena updated", zap.String("arena", name), zap.String("name", next.Name), zap.String("mode", string(next.Mode)))
	return next, nil
}

// undo reverts a hub change after a failed save. It runs even if ctx was
// cancelled, and a failure only gets logged.
func (r *Registry) undo(ctx context.Context, op, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.log.Error("rollback failed", zap.String("op", op), zap.String("arena", name), zap.Error(err))
	}
}

func (r *Registry) Settings() store.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// ServerName is the name players are welcomed with on connect.
func (r *Registry) ServerName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings.ServerName
}

func (r *Registry) SetCountdown(ctx context.Context, d time.Duration) error {
	if d < 0 || d > MaxCountdown {
		return ErrInvalidCountdown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.settings.Countdown
	if err := r.sessions.SetCountdown(ctx, d); err != nil {
		return err
	}
	r.settings.Countdown = d
	if err := r.saveSettings(ctx); err != nil {
		r.settings.Countdown = prev
		r.undo(ctx, "countdown", "", func(ctx context.Context) error {
			return r.sessions.SetCountdown(ctx, prev)
		})
		return err
	}
	return nil
}

func (r *Registry) SetRespawn(ctx context.Context, loc arena.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.settings.Respawn
	if err := r.sessions.SetRespawn(ctx, &loc); err != nil {
		return err
	}
	r.settings.Respawn = &loc
	if err := r.saveSettings(ctx); err != nil {
		r.settings.Respawn = prev
		r.undo(ctx, "respawn", "", func(ctx context.Context) error {
			return r.sessions.SetRespawn(ctx, prev)
		})
		return err
	}
	r.log.Info("respawn set", zap.Stringer("respawn", loc))
	return nil
}

func (r *Registry) SetServerName(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.settings.ServerName
	r.settings.ServerName = strings.TrimSpace(name)
	if err := r.saveSettings(ctx); err != nil {
		r.settings.ServerName = prev
		return err
	}
	return nil
}

func (r *Registry) index(name string) int {
	return slices.IndexFunc(r.defs, func(d arena.Definition) bool { return d.Name == name })
}

func (r *Registry) saveArenas(ctx context.Context) error {
	if err := r.store.SaveArenas(ctx, r.defs); err != nil {
		r.log.Error("save arenas", zap.Error(err))
		return fmt.Errorf("save arenas: %w", err)
	}
	return nil
}

func (r *Registry) saveSettings(ctx context.Context) error {
	if err := r.store.SaveSettings(ctx, r.settings); err != nil {
		r.log.Error("save settings", zap.Error(err))
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
