package batch

import (
	"context"
	"sync"
	"time"

	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/internal/repository"
	"github.com/mercaline/chat-service/internal/store"
	"github.com/mercaline/chat-service/pkg/log"
)

// Writer accumulates log records into a time-windowed buffer and drains
// it to the relational store as one bulk write. Persistence is
// at-least-once with unbounded retry: a failed flush keeps the buffer
// intact and re-arms the window, while new records keep appending. The
// durable unseen counters are incremented only after a bulk write
// succeeds; the message row, not the counter, is the source of truth.
type Writer struct {
	repo     repository.MessageRepository
	store    store.PresenceUnreadStore
	interval time.Duration

	mu     sync.Mutex
	buffer []*domain.ChatMessage
	timer  *time.Timer
	closed bool

	flushMu sync.Mutex // serializes flush attempts
}

// NewWriter creates a batch writer flushing on the given window.
func NewWriter(repo repository.MessageRepository, st store.PresenceUnreadStore, interval time.Duration) *Writer {
	return &Writer{
		repo:     repo,
		store:    st,
		interval: interval,
	}
}

// Append adds one record to the buffer. The first record into an empty
// buffer arms the flush window.
func (w *Writer) Append(msg *domain.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.buffer = append(w.buffer, msg)
	if len(w.buffer) == 1 {
		w.armLocked()
	}
}

// armLocked schedules a flush one window from now. Callers hold w.mu.
func (w *Writer) armLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, func() {
		w.Flush(context.Background())
	})
}

// Flush drains the buffered records in one bulk insert. A timer firing
// after an earlier flush already emptied the buffer is a no-op. On
// failure the buffer is left unchanged and the window re-armed.
func (w *Writer) Flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	// Snapshot the current prefix; appends may continue while the
	// insert is in flight.
	pending := w.buffer[:len(w.buffer):len(w.buffer)]
	w.mu.Unlock()

	l := log.Ctx(ctx)

	if err := w.repo.SaveBatch(ctx, pending); err != nil {
		l.Error().Int("records", len(pending)).Err(err).Msg("bulk insert failed, re-arming flush window")
		w.mu.Lock()
		if !w.closed {
			w.armLocked()
		}
		w.mu.Unlock()
		return
	}

	// Only now do the messages count as durably unseen. Counter
	// failures are logged and never roll back the insert.
	for _, msg := range pending {
		if _, err := w.store.IncrementUnseen(ctx, msg.RecipientRole(), msg.ConversationID); err != nil {
			l.Error().
				Str(log.FieldConversationID, msg.ConversationID).
				Err(err).
				Msg("failed to increment durable unseen counter")
		}
	}

	w.mu.Lock()
	w.buffer = w.buffer[len(pending):]
	if len(w.buffer) > 0 && !w.closed {
		w.armLocked()
	}
	w.mu.Unlock()

	l.Debug().Int("records", len(pending)).Msg("flushed message batch")
}

// Len reports the number of buffered records.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Close cancels the pending window and makes a final best-effort flush.
// Records still unflushed after a failed final attempt are lost to this
// process but remain in the log for the next consumer-group member.
func (w *Writer) Close(ctx context.Context) {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.Flush(ctx)
}
