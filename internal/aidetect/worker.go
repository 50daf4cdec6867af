package aidetect

import (
	"context"
	"errors"
	"sync"
)

const eventBuffer = 32

// Worker runs one scoring job at a time on its own goroutine and delivers
// progress through a channel, so callers never block on the classifier.
type Worker struct {
	engine     *Engine
	classifier Classifier

	mu   sync.Mutex
	busy bool
}

func NewWorker(engine *Engine, c Classifier) *Worker {
	return &Worker{engine: engine, classifier: c}
}

// Busy reports whether a run is in flight.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Start launches a run and returns immediately. It fails with ErrBusy while a
// previous run has not finished.
func (w *Worker) Start(ctx context.Context, text string) (*Run, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	w.busy = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		abandoned: make(chan struct{}),
		cancel:    cancel,
	}
	go w.loop(ctx, r, text)
	return r, nil
}

func (w *Worker) loop(ctx context.Context, r *Run, text string) {
	defer r.cancel()

	res, err := w.engine.Run(ctx, text, w.classifier, func(ev Event) {
		r.sendProgress(ctx, ev)
	})
	r.result, r.err = res, err

	switch {
	case err == nil:
		r.sendTerminal(Event{
			Kind:    EventCompleted,
			State:   StateCompleted,
			Index:   len(res.Paragraphs),
			Total:   len(res.Paragraphs) + res.Dropped,
			Percent: percentDone,
			Result:  &res,
		})
	case errors.Is(err, ErrCancelled):
		// partial results are discarded and no terminal event is sent
	default:
		r.sendTerminal(Event{Kind: EventFailed, State: StateFailed, Err: err})
	}
	close(r.events)

	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
	close(r.done)
}

// Run is a handle to one in-flight scoring job.
type Run struct {
	events    chan Event
	done      chan struct{}
	abandoned chan struct{}
	abandon   sync.Once
	cancel    context.CancelFunc

	result Result
	err    error
}

// Events yields progress events followed by exactly one completed or failed
// event, then closes. A run stopped by cancellation closes the channel without
// a terminal event. A run whose last classifier call finishes after ctx was
// cancelled still completes and still delivers its terminal event. Callers
// must drain the channel or call Cancel.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel asks the run to stop at the next paragraph boundary. A classifier
// call already in flight is allowed to finish. Cancel also tells the run that
// nobody will read further events.
func (r *Run) Cancel() {
	r.abandon.Do(func() { close(r.abandoned) })
	r.cancel()
}

// Done is closed once the run has finished and the worker is free again.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes, discarding any events nobody read.
func (r *Run) Wait() (Result, error) {
	for range r.events {
	}
	<-r.done
	return r.result, r.err
}

// State reports the final state of a finished run, or StateScoring while it
// is still going.
func (r *Run) State() State {
	select {
	case <-r.done:
	default:
		return StateScoring
	}
	switch {
	case r.err == nil:
		return StateCompleted
	case errors.Is(r.err, ErrCancelled):
		return StateCancelled
	default:
		return StateFailed
	}
}

// sendProgress gives up once ctx is done; progress after cancellation is
// not needed by anyone.
func (r *Run) sendProgress(ctx context.Context, ev Event) {
	select {
	case r.events <- ev:
		return
	default:
	}
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}

// sendTerminal delivers the completed or failed event regardless of ctx. It
// only gives up when the consumer called Cancel and the buffer is full.
func (r *Run) sendTerminal(ev Event) {
	select {
	case r.events <- ev:
		return
	default:
	}
	select {
	case r.events <- ev:
	case <-r.abandoned:
	}
}
