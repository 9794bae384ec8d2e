package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/engine"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

type memStore struct {
	mu      sync.Mutex
	matches []MatchRecord
	fail    bool
}

func (m *memStore) ListArenas(context.Context) ([]arena.Definition, error) { return nil, nil }
func (m *memStore) SaveArenas(context.Context, []arena.Definition) error   { return nil }
func (m *memStore) LoadSettings(context.Context) (Settings, bool, error)   { return Settings{}, false, nil }
func (m *memStore) SaveSettings(context.Context, Settings) error           { return nil }
func (m *memStore) Close() error                                           { return nil }

func (m *memStore) RecordMatch(_ context.Context, rec MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.matches = append(m.matches, rec)
	return nil
}

func (m *memStore) ListMatches(context.Context, int) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchRecord(nil), m.matches...), nil
}

func result(name string) session.Result {
	w := uuid.New()
	return session.Result{
		Arena:   name,
		Mode:    arena.FreeForAll,
		Outcome: engine.Outcome{Kind: engine.OutcomeSolo, Team: engine.NoTeam, Winners: []uuid.UUID{w}},
		Roster:  []uuid.UUID{w},
	}
}

func TestRecordFromResult(t *testing.T) {
	res := result("canyon")
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	rec := RecordFromResult(res, at)
	assert.Equal(t, "canyon", rec.Arena)
	assert.Equal(t, engine.OutcomeSolo, rec.Outcome)
	assert.Equal(t, engine.NoTeam, rec.Team)
	assert.Equal(t, res.Outcome.Winners, rec.Winners)
	assert.Equal(t, time.UTC, rec.EndedAt.Location())
}

func TestRecorderFlushesOnShutdown(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, 4, nil)
	r.Submit(result("canyon"))
	r.Submit(result("peaks"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, _ := st.ListMatches(context.Background(), 0)
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	r.Submit(result("dunes"))
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}

	got, _ := st.ListMatches(context.Background(), 0)
	assert.Len(t, got, 3)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, 1, nil)
	r.Submit(result("canyon"))
	r.Submit(result("peaks"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	got, _ := st.ListMatches(context.Background(), 0)
	require.Len(t, got, 1)
	assert.Equal(t, "canyon", got[0].Arena)
}

func TestRecorderSurvivesStoreErrors(t *testing.T) {
	st := &memStore{fail: true}
	r := NewRecorder(st, 2, nil)
	r.Submit(result("canyon"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
}
