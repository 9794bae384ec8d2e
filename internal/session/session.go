// Package session runs the per-arena match lifecycle:
// WAITING -> COUNTDOWN -> ACTIVE -> back to WAITING.
//
// A Session is not safe for concurrent use. The hub owns every Session and
// calls into it from a single goroutine; clock callbacks must be routed back
// onto that goroutine (see clock.Post).
package session

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/clock"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
)

type State string

const (
	StateWaiting   State = "WAITING"
	StateCountdown State = "COUNTDOWN"
	StateActive    State = "ACTIVE"
)

type Effect string

const EffectFirework Effect = "firework"

// Players delivers side effects to players. Calls for offline players are no-ops.
type Players interface {
	IsOnline(id uuid.UUID) bool
	Name(id uuid.UUID) string
	Teleport(id uuid.UUID, loc arena.Location)
	SendMessage(id uuid.UUID, text string)
	PlayEffect(id uuid.UUID, effect Effect)
	Equip(id uuid.UUID, mode arena.TeamMode, team int)
}

// Presenter is told whenever a player's session membership changes.
type Presenter interface {
	Refresh(id uuid.UUID, st Status)
}

// Registry is the narrow view of the owning hub a Session needs.
type Registry interface {
	BroadcastToIdle(text string)
	InOtherActiveSession(id uuid.UUID, self *Session) bool
}

type Deps struct {
	Clock     clock.Clock
	Players   Players
	Presenter Presenter // optional
	Registry  Registry  // optional
	Shuffle   func([]uuid.UUID)
	Log       *zap.Logger

	// OnResolved, if set, receives every resolved match.
	OnResolved func(Result)
}

// Settings are pushed in by the hub at creation and whenever they change.
type Settings struct {
	Countdown time.Duration
	Respawn   *arena.Location
}

// Status is what the presenter shows a single player. The zero value means
// the player is not in any session.
type Status struct {
	Arena    string         `json:"arena,omitempty"`
	Mode     arena.TeamMode `json:"team_mode,omitempty"`
	State    State          `json:"state,omitempty"`
	Queued   int            `json:"queued"`
	Active   int            `json:"active"`
	Required int            `json:"required"`
	Team     int            `json:"team"`
}

// Result describes a resolved match.
type Result struct {
	Arena   string
	Mode    arena.TeamMode
	Outcome engine.Outcome
	Roster  []uuid.UUID
}

type Session struct {
	def   arena.Definition
	rules arena.ModeRules
	state State

	queued   map[uuid.UUID]struct{}
	active   map[uuid.UUID]struct{}
	original map[uuid.UUID]struct{}
	teams    map[uuid.UUID]int

	countdown time.Duration
	respawn   *arena.Location

	timer    clock.Handle
	timerGen int

	deps Deps
	log  *zap.Logger
}

func New(def arena.Definition, settings Settings, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Shuffle == nil {
		deps.Shuffle = func(ids []uuid.UUID) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Session{
		def:       def,
		rules:     arena.Rules(def.Mode),
		state:     StateWaiting,
		queued:    map[uuid.UUID]struct{}{},
		active:    map[uuid.UUID]struct{}{},
		original:  map[uuid.UUID]struct{}{},
		teams:     map[uuid.UUID]int{},
		countdown: settings.Countdown,
		respawn:   settings.Respawn,
		deps:      deps,
		log:       deps.Log.With(zap.String("arena", def.Name)),
	}
}

func (s *Session) Name() string                 { return s.def.Name }
func (s *Session) Definition() arena.Definition { return s.def }
func (s *Session) State() State                 { return s.state }
func (s *Session) RequiredPlayers() int         { return s.rules.RequiredPlayers }
func (s *Session) InUse() bool                  { return s.state == StateActive }

// SetCountdown only affects countdowns started after the call.
func (s *Session) SetCountdown(d time.Duration) { s.countdown = d }

func (s *Session) SetRespawn(loc *arena.Location) { s.respawn = loc }

func (s *Session) IsQueued(id uuid.UUID) bool {
	_, ok := s.queued[id]
	return ok
}

func (s *Session) IsActive(id uuid.UUID) bool {
	_, ok := s.active[id]
	return ok
}

func (s *Session) Contains(id uuid.UUID) bool { return s.IsQueued(id) || s.IsActive(id) }

// Team returns the player's team index, or engine.NoTeam.
func (s *Session) Team(id uuid.UUID) int {
	if t, ok := s.teams[id]; ok {
		return t
	}
	return engine.NoTeam
}

// Enqueue adds a player to the queue. It returns false while a match is
// running or if the player is already queued.
func (s *Session) Enqueue(id uuid.UUID) bool {
	if s.state == StateActive {
		return false
	}
	if s.IsQueued(id) {
		return false
	}
	s.queued[id] = struct{}{}
	s.log.Debug("player queued", zap.Stringer("player", id), zap.Int("queued", len(s.queued)))

	s.announceJoin(id)
	s.refreshQueued()

	if s.state == StateWaiting && len(s.queued) >= s.rules.RequiredPlayers {
		s.startCountdown()
	}
	return true
}

func (s *Session) announceJoin(id uuid.UUID) {
	n, req := len(s.queued), s.rules.RequiredPlayers
	s.deps.Players.SendMessage(id, queuedMessage(s.def.Name, n, req))
	name := s.deps.Players.Name(id)
	if name == "" {
		name = id.String()
	}
	for _, other := range engine.SortedIDs(keys(s.queued)) {
		if other != id {
			s.deps.Players.SendMessage(other, joinedMessage(name, n, req))
		}
	}
}

// Remove drops the player from the queue or the active roster. Safe in any state.
func (s *Session) Remove(id uuid.UUID) bool {
	removed := false
	if s.IsQueued(id) {
		delete(s.queued, id)
		removed = true
	} else if s.IsActive(id) {
		delete(s.active, id)
		removed = true
	}
	delete(s.teams, id)

	if s.state == StateCountdown && len(s.queued) < s.rules.RequiredPlayers {
		s.cancelCountdown()
	}

	if removed {
		s.log.Debug("player removed", zap.Stringer("player", id), zap.String("state", string(s.state)))
		s.refresh(id, Status{})
		s.refreshQueued()
		s.refreshActive()
	}
	return removed
}

// Eliminate removes an active combatant and, when a respawn point is set,
// sends them there.
// The caller checks ShouldEnd afterwards.
func (s *Session) Eliminate(id uuid.UUID) bool {
	if s.state != StateActive || !s.IsActive(id) {
		return false
	}
	s.Remove(id)
	if s.respawn != nil {
		s.deps.Players.Teleport(id, *s.respawn)
		s.deps.Players.SendMessage(id, msgEliminated)
	}
	return true
}

func (s *Session) startCountdown() {
	if s.state != StateWaiting {
		return
	}
	s.state = StateCountdown
	s.timerGen++
	gen := s.timerGen

	secs := int(s.countdown / time.Second)
	if s.deps.Registry != nil {
		s.deps.Registry.BroadcastToIdle(countdownMessage(s.def.Name, secs))
	}
	s.timer = s.deps.Clock.After(s.countdown, func() { s.countdownExpired(gen) })
	s.log.Info("countdown started", zap.Duration("duration", s.countdown), zap.Int("queued", len(s.queued)))
	s.refreshQueued()
}

func (s *Session) cancelCountdown() {
	s.stopTimer()
	s.state = StateWaiting
	s.log.Info("countdown cancelled", zap.Int("queued", len(s.queued)))
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	// Invalidate any callback that already fired but has not run yet.
	s.timerGen++
}

func (s *Session) countdownExpired(gen int) {
	if gen != s.timerGen || s.state != StateCountdown {
		return
	}
	s.timer = nil
	s.StartMatch()
}

// StartMatch assigns teams, teleports players and moves the session to
// ACTIVE. It is a no-op unless the session is counting down.
func (s *Session) StartMatch() {
	if s.state != StateCountdown {
		return
	}
	s.stopTimer()

	a := engine.AssignTeams(engine.SortedIDs(keys(s.queued)), s.def.Mode, s.deps.Shuffle)

	for _, id := range a.Excluded {
		delete(s.queued, id)
		s.deps.Players.SendMessage(id, msgExcludedForBalance)
		s.refresh(id, Status{})
	}

	var roster []uuid.UUID
	for _, id := range a.Assigned {
		team, hasTeam := a.Teams[id]
		spawnIdx := 0
		if hasTeam {
			spawnIdx = team
		}
		loc := s.def.Spawn(spawnIdx)
		if loc == nil {
			// Players we cannot place are left out of the match entirely.
			delete(s.queued, id)
			s.deps.Players.SendMessage(id, msgMissingSpawn)
			s.refresh(id, Status{})
			s.log.Warn("spawn point not configured", zap.String("spawn", s.def.SpawnName(spawnIdx)), zap.Stringer("player", id))
			continue
		}
		if hasTeam {
			s.teams[id] = team
		}
		s.deps.Players.Teleport(id, *loc)
		s.deps.Players.SendMessage(id, teamMessage(s.def.Mode, team))
		s.deps.Players.Equip(id, s.def.Mode, s.Team(id))
		roster = append(roster, id)
	}

	clear(s.queued)
	if len(roster) == 0 {
		s.log.Warn("no players could be placed, match not started")
		s.Reset()
		return
	}

	for _, id := range roster {
		s.original[id] = struct{}{}
		s.active[id] = struct{}{}
	}
	s.state = StateActive
	s.log.Info("match started", zap.Int("players", len(roster)), zap.Int("excluded", len(a.Excluded)))
	s.refreshActive()

	// Unplaceable players can leave a single team standing.
	if s.ShouldEnd() {
		s.ResolveWin()
	}
}

// ShouldEnd evaluates the win condition. Always false outside ACTIVE.
func (s *Session) ShouldEnd() bool {
	if s.state != StateActive {
		return false
	}
	return engine.WinConditionMet(s.def.Mode, keys(s.active), s.teams)
}

// ResolveWin announces the result to everyone who started the match and
// resets the session. It is a no-op (ok == false) outside ACTIVE.
func (s *Session) ResolveWin() (res Result, ok bool) {
	if s.state != StateActive {
		return Result{}, false
	}

	outcome := engine.DecideOutcome(s.def.Mode, keys(s.active), s.teams)
	msg := outcome.Message(s.deps.Players.Name)

	if s.respawn != nil {
		for _, id := range engine.SortedIDs(keys(s.active)) {
			s.deps.Players.Teleport(id, *s.respawn)
		}
	}

	roster := engine.SortedIDs(keys(s.original))
	for _, id := range roster {
		s.deps.Players.SendMessage(id, msg)
		if outcome.IsWinner(id) && !s.inOtherActiveSession(id) {
			s.deps.Players.PlayEffect(id, EffectFirework)
		}
	}

	s.log.Info("match resolved",
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("winners", len(outcome.Winners)),
		zap.Int("players", len(roster)),
	)

	s.Reset()
	res = Result{Arena: s.def.Name, Mode: s.def.Mode, Outcome: outcome, Roster: roster}
	if s.deps.OnResolved != nil {
		s.deps.OnResolved(res)
	}
	return res, true
}

// Abort force-ends a running match. Survivors are judged as if the win
// condition had been met, so several free-for-all survivors draw.
func (s *Session) Abort() (Result, bool) {
	return s.ResolveWin()
}

func (s *Session) inOtherActiveSession(id uuid.UUID) bool {
	if s.deps.Registry == nil {
		return false
	}
	return s.deps.Registry.InOtherActiveSession(id, s)
}

// Reset returns to WAITING with every per-match set cleared.
func (s *Session) Reset() {
	s.stopTimer()
	affected := keys(s.queued)
	affected = append(affected, keys(s.active)...)

	clear(s.queued)
	clear(s.active)
	clear(s.original)
	clear(s.teams)
	s.state = StateWaiting

	for _, id := range affected {
		s.refresh(id, Status{})
	}
}

// Close is called when the arena is deregistered. Any running match is
// abandoned without an announcement.
func (s *Session) Close() {
	if s.state != StateWaiting {
		s.log.Info("session closed mid-match", zap.String("state", string(s.state)))
	}
	s.Reset()
}

type View struct {
	Arena     string            `json:"arena"`
	Mode      arena.TeamMode    `json:"team_mode"`
	State     State             `json:"state"`
	Required  int               `json:"required"`
	Countdown time.Duration     `json:"countdown"`
	Queued    []uuid.UUID       `json:"queued"`
	Active    []uuid.UUID       `json:"active"`
	Original  []uuid.UUID       `json:"original"`
	Teams     map[uuid.UUID]int `json:"teams"`
}

// Snapshot copies the session state for readers outside the hub loop.
func (s *Session) Snapshot() View {
	teams := make(map[uuid.UUID]int, len(s.teams))
	for id, t := range s.teams {
		teams[id] = t
	}
	return View{
		Arena:     s.def.Name,
		Mode:      s.def.Mode,
		State:     s.state,
		Required:  s.rules.RequiredPlayers,
		Countdown: s.countdown,
		Queued:    engine.SortedIDs(keys(s.queued)),
		Active:    engine.SortedIDs(keys(s.active)),
		Original:  engine.SortedIDs(keys(s.original)),
		Teams:     teams,
	}
}

func (s *Session) StatusFor(id uuid.UUID) Status {
	if !s.Contains(id) {
		return Status{}
	}
	return Status{
		Arena:    s.def.Name,
		Mode:     s.def.Mode,
		State:    s.state,
		Queued:   len(s.queued),
		Active:   len(s.active),
		Required: s.rules.RequiredPlayers,
		Team:     s.Team(id),
	}
}

func (s *Session) refresh(id uuid.UUID, st Status) {
	if s.deps.Presenter != nil {
		s.deps.Presenter.Refresh(id, st)
	}
}

func (s *Session) refreshQueued() {
	for id := range s.queued {
		s.refresh(id, s.StatusFor(id))
	}
}

func (s *Session) refreshActive() {
	for id := range s.active {
		s.refresh(id, s.StatusFor(id))
	}
}

func keys[V any](m map[uuid.UUID]V) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
