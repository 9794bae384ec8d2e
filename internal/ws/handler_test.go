package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/clock"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/hub"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/players"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/types"
)

func setup(t *testing.T) (*hub.Hub, *players.Directory, *httptest.Server) {
	t.Helper()
	return setupNamed(t, nil)
}

func setupNamed(t *testing.T, serverName func() string) (*hub.Hub, *players.Directory, *httptest.Server) {
	t.Helper()
	dir := players.NewDirectory(nil)
	h := hub.NewHub(context.Background(), hub.Options{Players: dir, Clock: clock.NewManual()})
	t.Cleanup(h.Shutdown)

	def, err := arena.New("canyon", arena.FreeForAll, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.CreateSession(context.Background(), def))

	srv := httptest.NewServer(Handler(h, dir, serverName, nil))
	t.Cleanup(srv.Close)
	return h, dir, srv
}

func dial(t *testing.T, srv *httptest.Server, id uuid.UUID) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/ws?player=%s&name=Goose", id)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
}

// next reads until a message of the given type arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestRejectsMissingPlayer(t *testing.T) {
	_, _, srv := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestQueueAndLeaveOnDisconnect(t *testing.T) {
	h, dir, srv := setup(t)
	id := uuid.New()
	conn := dial(t, srv, id)

	send(t, conn, types.ClientMessage{Type: "Queue", Arena: "canyon"})
	msg := next(t, conn, types.MsgText)
	assert.Equal(t, "You have been queued for map 'canyon'. Players: 1/2", msg.Text)
	st := next(t, conn, types.MsgStatus)
	require.NotNil(t, st.Status)
	assert.Equal(t, "canyon", st.Status.Arena)
	assert.Equal(t, "Goose", dir.Name(id))

	send(t, conn, types.ClientMessage{Type: "Queue", Arena: "canyon"})
	assert.Equal(t, "You are already queued for map 'canyon'.", next(t, conn, types.MsgError).Error)

	send(t, conn, types.ClientMessage{Type: "Dance"})
	assert.Equal(t, "unknown type", next(t, conn, types.MsgError).Error)

	_ = conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		_, ok, err := h.FindSessionOf(context.Background(), id)
		return err == nil && !ok && !dir.IsOnline(id)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWelcomesWithServerName(t *testing.T) {
	_, _, srv := setupNamed(t, func() string { return "Skyline" })
	conn := dial(t, srv, uuid.New())
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	assert.Equal(t, "Welcome to Skyline!", next(t, conn, types.MsgText).Text)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "No map found with that name.", Describe(hub.ErrUnknownArena, "x"))
	assert.Equal(t, "Player not found.", Describe(hub.ErrPlayerOffline, "x"))
	assert.Equal(t, "Map 'x' is currently in use.", Describe(fmt.Errorf("wrap: %w", hub.ErrArenaInUse), "x"))
	assert.Equal(t, "You are already in an active game.", Describe(hub.ErrAlreadyInMatch, "x"))
	assert.Equal(t, "Something went wrong.", Describe(errors.New("boom"), "x"))
}
