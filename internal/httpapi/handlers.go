package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/hub"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/maps"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/store"
)

var errBadRequest = errors.New("bad request")

type api struct {
	Deps
	log *zap.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

type arenaResponse struct {
	arena.Definition
	Session *session.View `json:"session,omitempty"`
}

type playerResponse struct {
	ID     uuid.UUID `json:"id"`
	Online bool      `json:"online"`
	Name   string    `json:"name,omitempty"`
	Arena  string    `json:"arena,omitempty"`
}

type settingsResponse struct {
	CountdownSeconds int             `json:"countdown_seconds"`
	Respawn          *arena.Location `json:"respawn,omitempty"`
	ServerName       string          `json:"server_name"`
}

type matchResponse struct {
	Outcome engine.OutcomeKind `json:"outcome"`
	Team    int                `json:"team"`
	Winners []uuid.UUID        `json:"winners"`
	Message string             `json:"message"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) listArenas(w http.ResponseWriter, r *http.Request) {
	views, err := a.Hub.Sessions(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	byName := make(map[string]*session.View, len(views))
	for i := range views {
		byName[views[i].Arena] = &views[i]
	}
	defs := a.Maps.List()
	out := make([]arenaResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, arenaResponse{Definition: def, Session: byName[def.Name]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getArena(w http.ResponseWriter, r *http.Request) {
	def, ok := a.Maps.Get(chi.URLParam(r, "name"))
	if !ok {
		a.fail(w, maps.ErrArenaNotFound)
		return
	}
	view, err := a.Hub.Session(r.Context(), def.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arenaResponse{Definition: def, Session: view})
}

func (a *api) createArena(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	def, err := a.Maps.Add(r.Context(), body.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (a *api) deleteArena(w http.ResponseWriter, r *http.Request) {
	if err := a.Maps.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) updateArena(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     *string `json:"name"`
		TeamMode *string `json:"team_mode"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	var mode *arena.TeamMode
	if body.TeamMode != nil {
		m, err := arena.ParseTeamMode(*body.TeamMode)
		if err != nil {
			a.fail(w, err)
			return
		}
		mode = &m
	}
	def, err := a.Maps.Update(r.Context(), chi.URLParam(r, "name"), mode, body.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *api) setCorner(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		a.fail(w, arena.ErrCornerOutOfRange)
		return
	}
	var loc arena.Location
	if !a.decode(w, r, &loc) {
		return
	}
	def, err := a.Maps.SetCorner(r.Context(), chi.URLParam(r, "name"), n, loc)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (a *api) setSpawn(w http.ResponseWriter, r *http.Request) {
	index, err := parseSpawnIndex(chi.URLParam(r, "team"))
	if err != nil {
		a.fail(w, err)
		return
	}
	var loc arena.Location
	if !a.decode(w, r, &loc) {
		return
	}
	def, err := a.Maps.SetSpawn(r.Context(), chi.URLParam(r, "name"), index, loc)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// parseSpawnIndex accepts "spawn", "team2", "team2spawn" or "2" and returns
// a zero-based index.
func parseSpawnIndex(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "spawn" {
		return 0, nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "team"), "spawn")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: use spawn, team1, team2 or team3", arena.ErrSpawnOutOfRange)
	}
	return n - 1, nil
}

func (a *api) queuePlayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerID uuid.UUID `json:"player_id"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if body.PlayerID == uuid.Nil {
		a.fail(w, fmt.Errorf("%w: player_id is required", errBadRequest))
		return
	}
	if err := a.Hub.Enqueue(r.Context(), body.PlayerID, chi.URLParam(r, "name")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) endMatch(w http.ResponseWriter, r *http.Request) {
	res, err := a.Hub.EndMatch(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{
		Outcome: res.Outcome.Kind,
		Team:    res.Outcome.Team,
		Winners: res.Outcome.Winners,
		Message: res.Outcome.Message(a.Players.Name),
	})
}

func (a *api) getPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerID(w, r)
	if !ok {
		return
	}
	name, _, err := a.Hub.FindSessionOf(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{
		ID:     id,
		Online: a.Players.IsOnline(id),
		Name:   a.Players.Name(id),
		Arena:  name,
	})
}

func (a *api) dequeuePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerID(w, r)
	if !ok {
		return
	}
	left, err := a.Hub.Leave(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": left})
}

func (a *api) eliminatePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerID(w, r)
	if !ok {
		return
	}
	if err := a.Hub.Eliminate(r.Context(), id); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsResponse(a.Maps.Settings()))
}

func (a *api) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CountdownSeconds *int            `json:"countdown_seconds"`
		Respawn          *arena.Location `json:"respawn"`
		ServerName       *string         `json:"server_name"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if body.CountdownSeconds != nil {
		secs := *body.CountdownSeconds
		if secs < 0 || secs > int(maps.MaxCountdown/time.Second) {
			a.fail(w, maps.ErrInvalidCountdown)
			return
		}
		if err := a.Maps.SetCountdown(r.Context(), time.Duration(secs)*time.Second); err != nil {
			a.fail(w, err)
			return
		}
	}
	if body.Respawn != nil {
		if err := a.Maps.SetRespawn(r.Context(), *body.Respawn); err != nil {
			a.fail(w, err)
			return
		}
	}
	if body.ServerName != nil {
		if err := a.Maps.SetServerName(r.Context(), *body.ServerName); err != nil {
			a.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(a.Maps.Settings()))
}

func toSettingsResponse(s store.Settings) settingsResponse {
	return settingsResponse{
		CountdownSeconds: int(s.Countdown / time.Second),
		Respawn:          s.Respawn,
		ServerName:       s.ServerName,
	}
}

func (a *api) listMatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.fail(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = n
	}
	recs, err := a.History.ListMatches(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if recs == nil {
		recs = []store.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *api) playerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, fmt.Errorf("%w: invalid player id", errBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, maps.ErrArenaNotFound),
		errors.Is(err, hub.ErrUnknownArena),
		errors.Is(err, hub.ErrPlayerOffline):
		return http.StatusNotFound
	case errors.Is(err, maps.ErrArenaExists),
		errors.Is(err, hub.ErrSessionExists),
		errors.Is(err, hub.ErrArenaInUse),
		errors.Is(err, hub.ErrAlreadyInMatch),
		errors.Is(err, hub.ErrAlreadyQueued),
		errors.Is(err, hub.ErrNoMatch),
		errors.Is(err, hub.ErrNotInMatch):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, arena.ErrEmptyName),
		errors.Is(err, arena.ErrSpawnOutOfRange),
		errors.Is(err, arena.ErrCornerOutOfRange),
		errors.Is(err, arena.ErrUnknownTeamMode),
		errors.Is(err, maps.ErrInvalidCountdown):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrHubClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
