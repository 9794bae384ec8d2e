package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

// Recorder writes match results in the background so the hub loop never
// waits on the database.
type Recorder struct {
	store Store
	queue chan MatchRecord
	now   func() time.Time
	log   *zap.Logger
}

func NewRecorder(st Store, buffer int, log *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store: st,
		queue: make(chan MatchRecord, buffer),
		now:   time.Now,
		log:   log.Named("recorder"),
	}
}

// Submit never blocks. Results that do not fit in the buffer are dropped.
func (r *Recorder) Submit(res session.Result) {
	rec := RecordFromResult(res, r.now())
	select {
	case r.queue <- rec:
	default:
		r.log.Warn("match history buffer full, dropping result", zap.String("arena", res.Arena))
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec MatchRecord) {
	if err := r.store.RecordMatch(ctx, rec); err != nil {
		r.log.Error("record match", zap.String("arena", rec.Arena), zap.Error(err))
	}
}
