// Package hub owns every arena Session and serializes all access to them on
// a single goroutine.
package hub

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/clock"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

var (
	ErrSessionExists  = errors.New("arena already has a session")
	ErrUnknownArena   = errors.New("unknown arena")
	ErrArenaInUse     = errors.New("arena is in use")
	ErrAlreadyInMatch = errors.New("player is already in a match")
	ErrAlreadyQueued  = errors.New("player is already queued for this arena")
	ErrNotInMatch     = errors.New("player is not in a running match")
	ErrNoMatch        = errors.New("no match is running on this arena")
	ErrPlayerOffline  = errors.New("player is not online")
	ErrHubClosed      = errors.New("hub is shut down")
)

// Players is everything the hub needs from the player directory.
type Players interface {
	session.Players
	session.Presenter
	Online() []uuid.UUID
}

type Options struct {
	Players  Players
	Clock    clock.Clock // defaults to clock.Real
	Shuffle  func([]uuid.UUID)
	Settings session.Settings
	Log      *zap.Logger

	// OnResolved is called on the hub goroutine and must not block.
	OnResolved func(session.Result)
}

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Def   arena.Definition
	Reply chan error
}

type RemoveSession struct {
	Name  string
	Reply chan bool
}

// ReplaceSession closes the session called Old and registers Def in its
// place. It fails while Old is running a match.
type ReplaceSession struct {
	Old   string
	Def   arena.Definition
	Reply chan error
}

type Enqueue struct {
	Player uuid.UUID
	Arena  string
	Reply  chan error
}

type Leave struct {
	Player uuid.UUID
	Reply  chan bool
}

type Eliminate struct {
	Player uuid.UUID
	Reply  chan error
}

type EndMatch struct {
	Arena string
	Reply chan EndResult
}

type EndResult struct {
	Result session.Result
	Err    error
}

type SetCountdown struct {
	Duration time.Duration
	Reply    chan struct{}
}

type SetRespawn struct {
	Location *arena.Location
	Reply    chan struct{}
}

type GetSession struct {
	Name  string
	Reply chan *session.View // nil if unknown
}

type ListSessions struct {
	Reply chan []session.View
}

type FindSessionOf struct {
	Player uuid.UUID
	Reply  chan string // "" if none
}

type IsArenaInUse struct {
	Name  string
	Reply chan bool
}

type ShutdownHub struct{}

// runFn carries a fired timer callback back onto the hub goroutine.
type runFn struct{ fn func() }

func (CreateSession) isHubMsg()  {}
func (RemoveSession) isHubMsg()  {}
func (ReplaceSession) isHubMsg() {}
func (Enqueue) isHubMsg()        {}
func (Leave) isHubMsg()          {}
func (Eliminate) isHubMsg()      {}
func (EndMatch) isHubMsg()       {}
func (SetCountdown) isHubMsg()   {}
func (SetRespawn) isHubMsg()     {}
func (GetSession) isHubMsg()     {}
func (ListSessions) isHubMsg()   {}
func (FindSessionOf) isHubMsg()  {}
func (IsArenaInUse) isHubMsg()   {}
func (ShutdownHub) isHubMsg()    {}
func (runFn) isHubMsg()          {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	order    []string // registration order, for first-match scans
	settings session.Settings

	players    Players
	clock      clock.Clock
	shuffle    func([]uuid.UUID)
	onResolved func(session.Result)
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		sessions:   make(map[string]*session.Session),
		settings:   opts.Settings,
		players:    opts.Players,
		shuffle:    opts.Shuffle,
		onResolved: opts.OnResolved,
		log:        opts.Log.Named("hub"),
		ctx:        ctx,
		cancel:     cancel,
	}
	h.clock = clock.Post(opts.Clock, h.post)
	go h.loop()
	return h
}

// Done is closed once the hub loop has stopped accepting messages.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// post hands fn to the loop. Callbacks posted after shutdown are dropped.
func (h *Hub) post(fn func()) {
	select {
	case h.inbox <- runFn{fn: fn}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg.Def)

			case RemoveSession:
				msg.Reply <- h.remove(msg.Name)

			case ReplaceSession:
				msg.Reply <- h.replace(msg.Old, msg.Def)

			case Enqueue:
				msg.Reply <- h.enqueue(msg.Player, msg.Arena)

			case Leave:
				msg.Reply <- h.leave(msg.Player)

			case Eliminate:
				msg.Reply <- h.eliminate(msg.Player)

			case EndMatch:
				res, err := h.endMatch(msg.Arena)
				msg.Reply <- EndResult{Result: res, Err: err}

			case SetCountdown:
				h.settings.Countdown = msg.Duration
				for _, s := range h.sessions {
					s.SetCountdown(msg.Duration)
				}
				msg.Reply <- struct{}{}

			case SetRespawn:
				h.settings.Respawn = msg.Location
				for _, s := range h.sessions {
					s.SetRespawn(msg.Location)
				}
				msg.Reply <- struct{}{}

			case GetSession:
				if s := h.sessions[msg.Name]; s != nil {
					v := s.Snapshot()
					msg.Reply <- &v
					break
				}
				msg.Reply <- nil

			case ListSessions:
				views := make([]session.View, 0, len(h.order))
				for _, name := range h.order {
					views = append(views, h.sessions[name].Snapshot())
				}
				msg.Reply <- views

			case FindSessionOf:
				name := ""
				if s := h.findSessionOf(msg.Player); s != nil {
					name = s.Name()
				}
				msg.Reply <- name

			case IsArenaInUse:
				s := h.sessions[msg.Name]
				msg.Reply <- s != nil && s.InUse()

			case runFn:
				msg.fn()

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, name := range h.order {
		h.sessions[name].Close()
	}
	clear(h.sessions)
	h.order = nil
}

func (h *Hub) create(def arena.Definition) error {
	if _, ok := h.sessions[def.Name]; ok {
		return ErrSessionExists
	}
	h.sessions[def.Name] = session.New(def, h.settings, session.Deps{
		Clock:      h.clock,
		Players:    h.players,
		Presenter:  h.players,
		Registry:   h,
		Shuffle:    h.shuffle,
		Log:        h.log,
		OnResolved: h.onResolved,
	})
	h.order = append(h.order, def.Name)
	h.log.Info("session registered", zap.String("arena", def.Name), zap.String("mode", string(def.Mode)))
	return nil
}

func (h *Hub) remove(name string) bool {
	s, ok := h.sessions[name]
	if !ok {
		return false
	}
	s.Close()
	delete(h.sessions, name)
	h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == name })
	h.log.Info("session removed", zap.String("arena", name))
	return true
}

func (h *Hub) replace(old string, def arena.Definition) error {
	s, ok := h.sessions[old]
	if !ok {
		return ErrUnknownArena
	}
	if s.InUse() {
		return ErrArenaInUse
	}
	if def.Name != old {
		if _, taken := h.sessions[def.Name]; taken {
			return ErrSessionExists
		}
	}
	idx := slices.Index(h.order, old)
	h.remove(old)
	if err := h.create(def); err != nil {
		return err
	}
	// Keep the arena's place in the scan order.
	h.order = slices.Delete(h.order, len(h.order)-1, len(h.order))
	h.order = slices.Insert(h.order, idx, def.Name)
	return nil
}

func (h *Hub) enqueue(id uuid.UUID, name string) error {
	target, ok := h.sessions[name]
	if !ok {
		return ErrUnknownArena
	}
	if !h.players.IsOnline(id) {
		return ErrPlayerOffline
	}
	if target.InUse() {
		return ErrArenaInUse
	}
	if h.inActiveSession(id) {
		return ErrAlreadyInMatch
	}
	if target.IsQueued(id) {
		return ErrAlreadyQueued
	}
	for _, s := range h.sessions {
		if s != target {
			s.Remove(id)
		}
	}
	if !target.Enqueue(id) {
		return ErrAlreadyQueued
	}
	return nil
}

// leave removes the player everywhere. A running match that loses a
// combatant re-checks its win condition.
func (h *Hub) leave(id uuid.UUID) bool {
	left := false
	for _, name := range h.order {
		s := h.sessions[name]
		wasActive := s.IsActive(id)
		if !s.Remove(id) {
			continue
		}
		left = true
		if wasActive && s.ShouldEnd() {
			s.ResolveWin()
		}
	}
	return left
}

func (h *Hub) eliminate(id uuid.UUID) error {
	for _, name := range h.order {
		s := h.sessions[name]
		if !s.Eliminate(id) {
			continue
		}
		if s.ShouldEnd() {
			s.ResolveWin()
		}
		return nil
	}
	return ErrNotInMatch
}

func (h *Hub) endMatch(name string) (session.Result, error) {
	s, ok := h.sessions[name]
	if !ok {
		return session.Result{}, ErrUnknownArena
	}
	res, ok := s.Abort()
	if !ok {
		return session.Result{}, ErrNoMatch
	}
	return res, nil
}

func (h *Hub) findSessionOf(id uuid.UUID) *session.Session {
	for _, name := range h.order {
		if s := h.sessions[name]; s.Contains(id) {
			return s
		}
	}
	return nil
}

func (h *Hub) inActiveSession(id uuid.UUID) bool {
	for _, s := range h.sessions {
		if s.InUse() && s.IsActive(id) {
			return true
		}
	}
	return false
}

// BroadcastToIdle implements session.Registry. It runs on the hub goroutine.
func (h *Hub) BroadcastToIdle(text string) {
	if h.players == nil {
		return
	}
	for _, id := range h.players.Online() {
		if !h.inActiveSession(id) {
			h.players.SendMessage(id, text)
		}
	}
}

// InOtherActiveSession implements session.Registry.
func (h *Hub) InOtherActiveSession(id uuid.UUID, self *session.Session) bool {
	for _, s := range h.sessions {
		if s != self && s.InUse() && s.IsActive(id) {
			return true
		}
	}
	return false
}
