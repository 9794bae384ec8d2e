// Package arena describes the static layout of a dogfight map: its bounds,
// team mode and per-team spawn points.
package arena

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName        = errors.New("arena name is required")
	ErrSpawnOutOfRange  = errors.New("spawn index out of range")
	ErrCornerOutOfRange = errors.New("corner must be 1 or 2")
)

type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw,omitempty"`
	Pitch float32 `json:"pitch,omitempty"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// Definition is immutable once built; the With* methods return copies.
// len(Spawns) always equals RequiredSpawns(Mode), nil entries are unset.
type Definition struct {
	Name    string      `json:"name"`
	Corner1 *Location   `json:"corner1,omitempty"`
	Corner2 *Location   `json:"corner2,omitempty"`
	Mode    TeamMode    `json:"team_mode"`
	Spawns  []*Location `json:"spawns"`
}

// New builds a definition, padding or truncating spawns to fit mode.
func New(name string, mode TeamMode, corner1, corner2 *Location, spawns []*Location) (Definition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Definition{}, ErrEmptyName
	}
	if !mode.Valid() {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTeamMode, mode)
	}
	d := Definition{
		Name:    name,
		Corner1: cloneLoc(corner1),
		Corner2: cloneLoc(corner2),
		Mode:    mode,
	}
	d.Spawns = resize(spawns, RequiredSpawns(mode))
	return d, nil
}

func resize(spawns []*Location, n int) []*Location {
	out := make([]*Location, n)
	for i := 0; i < n && i < len(spawns); i++ {
		out[i] = cloneLoc(spawns[i])
	}
	return out
}

func cloneLoc(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Spawn returns the spawn for a team index, or nil if unset or out of range.
func (d Definition) Spawn(index int) *Location {
	if index < 0 || index >= len(d.Spawns) {
		return nil
	}
	return cloneLoc(d.Spawns[index])
}

// SpawnName is the label admins use for a spawn slot.
func (d Definition) SpawnName(index int) string {
	if d.Mode == FreeForAll {
		return "spawn"
	}
	return fmt.Sprintf("team%dspawn", index+1)
}

// WithMode keeps existing spawns by index; extra slots are dropped and new ones are unset.
func (d Definition) WithMode(mode TeamMode) (Definition, error) {
	return New(d.Name, mode, d.Corner1, d.Corner2, d.Spawns)
}

func (d Definition) WithName(name string) (Definition, error) {
	return New(name, d.Mode, d.Corner1, d.Corner2, d.Spawns)
}

func (d Definition) WithCorner(which int, loc Location) (Definition, error) {
	c1, c2 := d.Corner1, d.Corner2
	switch which {
	case 1:
		c1 = &loc
	case 2:
		c2 = &loc
	default:
		return d, ErrCornerOutOfRange
	}
	return New(d.Name, d.Mode, c1, c2, d.Spawns)
}

func (d Definition) WithSpawn(index int, loc Location) (Definition, error) {
	if index < 0 || index >= len(d.Spawns) {
		return d, ErrSpawnOutOfRange
	}
	spawns := resize(d.Spawns, len(d.Spawns))
	spawns[index] = &loc
	return New(d.Name, d.Mode, d.Corner1, d.Corner2, spawns)
}
