// Package players tracks connected players and turns session side effects
// into messages on each player's outbox.
package players

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/types"
)

type client struct {
	name   string
	outbox chan types.ServerMessage
}

// Directory is safe for concurrent use. It is written by WebSocket handlers
// and read by the hub loop.
type Directory struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	log     *zap.Logger
}

func NewDirectory(log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		clients: make(map[uuid.UUID]*client),
		log:     log.Named("players"),
	}
}

// Connect registers a player. A previous connection for the same ID is
// closed and replaced.
func (d *Directory) Connect(id uuid.UUID, name string, outbox chan types.ServerMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.clients[id]; ok && old.outbox != outbox {
		close(old.outbox)
	}
	d.clients[id] = &client{name: name, outbox: outbox}
	d.log.Info("player connected", zap.Stringer("player", id), zap.String("name", name))
}

// Disconnect removes the player if outbox is still the registered one.
// It reports whether the player was removed.
func (d *Directory) Disconnect(id uuid.UUID, outbox chan types.ServerMessage) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[id]
	if !ok || c.outbox != outbox {
		return false
	}
	close(c.outbox)
	delete(d.clients, id)
	d.log.Info("player disconnected", zap.Stringer("player", id))
	return true
}

func (d *Directory) IsOnline(id uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.clients[id]
	return ok
}

func (d *Directory) Name(id uuid.UUID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.clients[id]; ok {
		return c.name
	}
	return ""
}

func (d *Directory) Online() []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(d.clients))
	for id := range d.clients {
		out = append(out, id)
	}
	return out
}

func (d *Directory) Teleport(id uuid.UUID, loc arena.Location) {
	d.send(id, types.ServerMessage{Type: types.MsgTeleport, Location: &loc})
}

func (d *Directory) SendMessage(id uuid.UUID, text string) {
	d.send(id, types.ServerMessage{Type: types.MsgText, Text: text})
}

func (d *Directory) PlayEffect(id uuid.UUID, effect session.Effect) {
	d.send(id, types.ServerMessage{Type: types.MsgEffect, Effect: effect})
}

func (d *Directory) Equip(id uuid.UUID, mode arena.TeamMode, team int) {
	d.send(id, types.ServerMessage{Type: types.MsgLoadout, Mode: mode, Team: &team})
}

// Refresh implements session.Presenter.
func (d *Directory) Refresh(id uuid.UUID, st session.Status) {
	d.send(id, types.ServerMessage{Type: types.MsgStatus, Status: &st})
}

func (d *Directory) SendError(id uuid.UUID, msg string) {
	d.send(id, types.ServerMessage{Type: types.MsgError, Error: msg})
}

// send never blocks. A client whose outbox is full is dropped.
func (d *Directory) send(id uuid.UUID, msg types.ServerMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[id]
	if !ok {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		close(c.outbox)
		delete(d.clients, id)
		d.log.Warn("dropping slow client", zap.Stringer("player", id))
	}
}
