package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/hub"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/players"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/types"
)

// Queue is the part of the hub a connected player can drive.
type Queue interface {
	Enqueue(ctx context.Context, id uuid.UUID, arenaName string) error
	Leave(ctx context.Context, id uuid.UUID) (bool, error)
}

const (
	writeTimeout = 3 * time.Second
	leaveTimeout = 2 * time.Second
	outboxSize   = 32
)

// Handler upgrades /ws?player=<uuid>&name=<display> and keeps the player
// online until the socket closes. serverName, if set, names the server in
// the welcome message.
func Handler(q Queue, dir *players.Directory, serverName func() string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.URL.Query().Get("player"))
		if err != nil {
			http.Error(w, "missing or invalid player id", http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = id.String()[:8]
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, outboxSize)
		dir.Connect(id, name, out)
		if serverName != nil {
			if s := serverName(); s != "" {
				dir.SendMessage(id, fmt.Sprintf("Welcome to %s!", s))
			}
		}
		defer func() {
			dir.Disconnect(id, out)
			// A newer connection for the same player keeps their place.
			if dir.IsOnline(id) {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer cancel()
			if _, err := q.Leave(ctx, id); err != nil {
				log.Warn("leave on disconnect", zap.Stringer("player", id), zap.Error(err))
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("encode message", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				err = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
			// Outbox closed: replaced by a newer connection or dropped as slow.
			conn.Close(websocket.StatusPolicyViolation, "connection superseded")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Stringer("player", id), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				dir.SendError(id, "bad json")
				continue
			}

			switch cm.Type {
			case "Queue":
				if err := q.Enqueue(r.Context(), id, cm.Arena); err != nil {
					dir.SendError(id, Describe(err, cm.Arena))
				}
			case "Leave":
				if _, err := q.Leave(r.Context(), id); err != nil {
					dir.SendError(id, Describe(err, ""))
				}
			default:
				dir.SendError(id, "unknown type")
			}
		}
	}
}

// Describe turns a hub error into text for the player.
func Describe(err error, arenaName string) string {
	switch {
	case errors.Is(err, hub.ErrUnknownArena):
		return "No map found with that name."
	case errors.Is(err, hub.ErrPlayerOffline):
		return "Player not found."
	case errors.Is(err, hub.ErrArenaInUse):
		return fmt.Sprintf("Map '%s' is currently in use.", arenaName)
	case errors.Is(err, hub.ErrAlreadyInMatch):
		return "You are already in an active game."
	case errors.Is(err, hub.ErrAlreadyQueued):
		return fmt.Sprintf("You are already queued for map '%s'.", arenaName)
	case errors.Is(err, hub.ErrHubClosed):
		return "The server is shutting down."
	default:
		return "Something went wrong."
	}
}
