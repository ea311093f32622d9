package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/askzen/internal/domain"
)

const (
	defaultQueueSize  = 1000
	writeTimeout      = 5 * time.Second
	closeFlushTimeout = 5 * time.Second
)

// TranscriptWriter records turns asynchronously so request handling never
// waits on the database. When the queue is full the oldest pending turn is
// dropped.
type TranscriptWriter struct {
	repo   Repository
	queue  chan domain.Turn
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	closed  atomic.Bool
	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// WriterStats reports TranscriptWriter counters.
type WriterStats struct {
	Queued   int   `json:"queued"`
	Capacity int   `json:"capacity"`
	Written  int64 `json:"written"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

// NewTranscriptWriter creates a writer and starts its background processor.
func NewTranscriptWriter(repo Repository, queueSize int, logger *slog.Logger) *TranscriptWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &TranscriptWriter{
		repo:   repo,
		queue:  make(chan domain.Turn, queueSize),
		stop:   make(chan struct{}),
		logger: logger,
	}

	w.wg.Add(1)
	go w.process()

	return w
}

// Record queues a turn without blocking.
func (w *TranscriptWriter) Record(turn domain.Turn) {
	if w.closed.Load() {
		w.dropped.Add(1)
		return
	}

	select {
	case w.queue <- turn:
		return
	default:
	}

	// Queue full: make room by dropping the oldest pending turn.
	select {
	case old := <-w.queue:
		w.dropped.Add(1)
		w.logger.Warn("transcript queue full, dropped oldest turn",
			"turn_id", old.ID,
			"queue_len", len(w.queue),
		)
	default:
	}

	select {
	case w.queue <- turn:
	default:
		w.dropped.Add(1)
		w.logger.Warn("transcript queue full, dropped turn", "turn_id", turn.ID)
	}
}

func (w *TranscriptWriter) process() {
	defer w.wg.Done()

	for {
		select {
		case turn := <-w.queue:
			w.write(turn)
		case <-w.stop:
			// Flush what is already queued, then exit.
			for {
				select {
				case turn := <-w.queue:
					w.write(turn)
				default:
					return
				}
			}
		}
	}
}

func (w *TranscriptWriter) write(turn domain.Turn) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	start := time.Now()
	err := w.repo.UpsertUser(ctx, &domain.User{
		UserID:      turn.UserID,
		DisplayName: turn.DisplayName,
		Username:    turn.Username,
		FirstSeenAt: turn.CreatedAt,
		LastSeenAt:  turn.CreatedAt,
	})
	if err == nil {
		err = w.repo.InsertTurn(ctx, &turn)
	}
	if err != nil {
		w.failed.Add(1)
		w.logger.Error("failed to record turn", "turn_id", turn.ID, "user_id", turn.UserID, "error", err)
		return
	}
	w.written.Add(1)

	if d := time.Since(start); d > 100*time.Millisecond {
		w.logger.Warn("slow transcript write", "turn_id", turn.ID, "duration_ms", d.Milliseconds())
	}
}

// Close stops accepting turns and flushes the queue, waiting at most a few
// seconds for the processor to finish.
func (w *TranscriptWriter) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("transcript writer stopped", "written", w.written.Load(), "dropped", w.dropped.Load())
	case <-time.After(closeFlushTimeout):
		w.logger.Warn("transcript writer shutdown timeout", "queue_remaining", len(w.queue))
	}
	return nil
}

// Stats returns writer statistics.
func (w *TranscriptWriter) Stats() WriterStats {
	return WriterStats{
		Queued:   len(w.queue),
		Capacity: cap(w.queue),
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Failed:   w.failed.Load(),
	}
}
