package hub

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

// ask sends a message built around a fresh reply channel and waits for the
// answer, the caller's context, or hub shutdown.
func ask[T any](ctx context.Context, h *Hub, build func(chan T) HubMsg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case h.inbox <- build(reply):
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	}
}

// askErr is ask for messages whose reply is itself an error.
func askErr(ctx context.Context, h *Hub, build func(chan error) HubMsg) error {
	err, callErr := ask(ctx, h, build)
	if callErr != nil {
		return callErr
	}
	return err
}

func (h *Hub) CreateSession(ctx context.Context, def arena.Definition) error {
	return askErr(ctx, h, func(r chan error) HubMsg { return CreateSession{Def: def, Reply: r} })
}

func (h *Hub) RemoveSession(ctx context.Context, name string) (bool, error) {
	return ask(ctx, h, func(r chan bool) HubMsg { return RemoveSession{Name: name, Reply: r} })
}

func (h *Hub) ReplaceSession(ctx context.Context, old string, def arena.Definition) error {
	return askErr(ctx, h, func(r chan error) HubMsg { return ReplaceSession{Old: old, Def: def, Reply: r} })
}

func (h *Hub) Enqueue(ctx context.Context, id uuid.UUID, arenaName string) error {
	return askErr(ctx, h, func(r chan error) HubMsg { return Enqueue{Player: id, Arena: arenaName, Reply: r} })
}

// Leave reports whether the player was in any session.
func (h *Hub) Leave(ctx context.Context, id uuid.UUID) (bool, error) {
	return ask(ctx, h, func(r chan bool) HubMsg { return Leave{Player: id, Reply: r} })
}

func (h *Hub) Eliminate(ctx context.Context, id uuid.UUID) error {
	return askErr(ctx, h, func(r chan error) HubMsg { return Eliminate{Player: id, Reply: r} })
}

func (h *Hub) EndMatch(ctx context.Context, arenaName string) (session.Result, error) {
	res, err := ask(ctx, h, func(r chan EndResult) HubMsg { return EndMatch{Arena: arenaName, Reply: r} })
	if err != nil {
		return session.Result{}, err
	}
	return res.Result, res.Err
}

func (h *Hub) SetCountdown(ctx context.Context, d time.Duration) error {
	_, err := ask(ctx, h, func(r chan struct{}) HubMsg { return SetCountdown{Duration: d, Reply: r} })
	return err
}

func (h *Hub) SetRespawn(ctx context.Context, loc *arena.Location) error {
	_, err := ask(ctx, h, func(r chan struct{}) HubMsg { return SetRespawn{Location: loc, Reply: r} })
	return err
}

// Session returns a snapshot of one session, or nil if the arena is unknown.
func (h *Hub) Session(ctx context.Context, name string) (*session.View, error) {
	return ask(ctx, h, func(r chan *session.View) HubMsg { return GetSession{Name: name, Reply: r} })
}

func (h *Hub) Sessions(ctx context.Context) ([]session.View, error) {
	return ask(ctx, h, func(r chan []session.View) HubMsg { return ListSessions{Reply: r} })
}

// FindSessionOf returns the arena the player is queued or fighting in.
func (h *Hub) FindSessionOf(ctx context.Context, id uuid.UUID) (string, bool, error) {
	name, err := ask(ctx, h, func(r chan string) HubMsg { return FindSessionOf{Player: id, Reply: r} })
	return name, name != "", err
}

func (h *Hub) IsArenaInUse(ctx context.Context, name string) (bool, error) {
	return ask(ctx, h, func(r chan bool) HubMsg { return IsArenaInUse{Name: name, Reply: r} })
}

// Shutdown closes every session and stops the loop.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}
