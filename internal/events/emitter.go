package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"webforge/internal/logging"
	"webforge/internal/project"
)

// Emitter pushes lines into a bounded channel drained by the caller. A send
// that cannot complete within the send timeout detaches the consumer: every
// later line is dropped so the pipeline never waits on a stalled reader.
type Emitter struct {
	ch          chan Line
	sendTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	closed   bool
	detached atomic.Bool
	dropped  atomic.Int64
	terminal atomic.Bool
}

// NewEmitter creates an emitter with the given buffer size and send timeout.
func NewEmitter(buffer int, sendTimeout time.Duration) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Emitter{
		ch:          make(chan Line, buffer),
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// Lines returns the receive side of the stream. It is closed by Close.
func (e *Emitter) Lines() <-chan Line { return e.ch }

// Detach marks the consumer as gone. Later lines are dropped.
func (e *Emitter) Detach() {
	if e.detached.CompareAndSwap(false, true) {
		logging.Info("stream consumer detached")
	}
}

// Detached reports whether the consumer has gone away.
func (e *Emitter) Detached() bool { return e.detached.Load() }

// Dropped returns how many lines were discarded.
func (e *Emitter) Dropped() int64 { return e.dropped.Load() }

// Emit sends one line. It returns false if the line was dropped.
func (e *Emitter) Emit(ctx context.Context, line Line) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed || e.detached.Load() {
		e.dropped.Add(1)
		return false
	}

	// Fast path when the buffer has room.
	select {
	case e.ch <- line:
		return true
	default:
	}

	timer := time.NewTimer(e.sendTimeout)
	defer timer.Stop()
	select {
	case e.ch <- line:
		return true
	case <-timer.C:
		logging.Warn("stream consumer too slow, detaching", "timeout", e.sendTimeout)
		e.Detach()
	case <-ctx.Done():
		e.Detach()
	}
	e.dropped.Add(1)
	return false
}

// Event emits a stage event.
func (e *Emitter) Event(ctx context.Context, stage, message string, progress int) {
	e.Emit(ctx, Line{Type: LineEvent, Event: &Event{
		Type:      stage,
		Message:   message,
		Progress:  clampProgress(progress),
		Timestamp: e.now(),
	}})
}

// File emits one generated file.
func (e *Emitter) File(ctx context.Context, f project.File) {
	e.Emit(ctx, Line{Type: LineFile, File: &f})
}

// Metadata emits the result metadata.
func (e *Emitter) Metadata(ctx context.Context, m any) {
	e.Emit(ctx, Line{Type: LineMetadata, Metadata: m})
}

// Done emits the success terminator. Only the first terminal line is sent.
func (e *Emitter) Done(ctx context.Context) {
	if e.terminal.CompareAndSwap(false, true) {
		e.Emit(ctx, Line{Type: LineDone})
	}
}

// Fail emits the error terminator. Only the first terminal line is sent.
func (e *Emitter) Fail(ctx context.Context, msg string) {
	if e.terminal.CompareAndSwap(false, true) {
		e.Emit(ctx, Line{Type: LineError, Error: msg})
	}
}

// Close closes the stream. It is safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
