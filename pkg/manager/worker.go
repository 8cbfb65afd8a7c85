package manager

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"migfleet/pkg/errors"
	"migfleet/pkg/log"
)

// cancelledMessage is delivered to every command still queued when the
// worker stops.
const cancelledMessage = "cancelled: shutting down"

// OnComplete is the completion handler of an asynchronous command. It is
// invoked exactly once, from the worker goroutine, with the outcome and a
// human-readable message.
type OnComplete func(ok bool, msg string)

type command struct {
	name string
	op   func() error
	done OnComplete
}

func (c command) complete(ok bool, msg string) {
	if c.done != nil {
		c.done(ok, msg)
	}
}

// worker serializes all mutating hardware commands: a single goroutine
// drains a FIFO queue, executes each command against the driver, refreshes
// the registry after a success, and reports the outcome exactly once. The
// queue is a mutex/condition-variable pair so producers never block and the
// drain-and-cancel shutdown contract holds for any backlog size.
type worker struct {
	refresh func(context.Context)

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []command
	stopping bool
	started  bool
	exited   chan struct{}
}

func newWorker(refresh func(context.Context)) *worker {
	w := &worker{
		refresh: refresh,
		exited:  make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)

	return w
}

func (w *worker) start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	w.started = true

	go w.run(ctx)
}

// submit enqueues a command. Commands execute in strict submission order.
func (w *worker) submit(cmd command) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopping {
		return errors.ErrShuttingDown
	}

	w.queue = append(w.queue, cmd)
	w.cond.Signal()

	return nil
}

// stop signals the worker, lets any in-flight command finish, cancels every
// command still queued, and waits for the goroutine to exit.
func (w *worker) stop() {
	w.mu.Lock()

	if w.stopping {
		w.mu.Unlock()
		<-w.exited

		return
	}

	w.stopping = true
	started := w.started
	w.cond.Broadcast()
	w.mu.Unlock()

	if !started {
		// No goroutine to join; cancel the backlog here.
		w.mu.Lock()
		pending := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, cmd := range pending {
			cmd.complete(false, cancelledMessage)
		}

		close(w.exited)

		return
	}

	<-w.exited
}

// flush blocks until every command submitted before it has completed. It
// works by queueing a barrier command and waiting for its callback, so it
// inherits the FIFO ordering guarantee. A zero or negative timeout waits
// indefinitely.
func (w *worker) flush(timeout time.Duration) error {
	barrier := make(chan bool, 1)

	err := w.submit(command{
		name: "flush barrier",
		op:   func() error { return nil },
		done: func(ok bool, _ string) { barrier <- ok },
	})
	if err != nil {
		return err
	}

	if timeout <= 0 {
		if ok := <-barrier; !ok {
			return errors.ErrShuttingDown
		}

		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-barrier:
		if !ok {
			return errors.ErrShuttingDown
		}

		return nil
	case <-timer.C:
		return errors.NewTimeout("flush", timeout)
	}
}

func (w *worker) depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.queue)
}

func (w *worker) run(ctx context.Context) {
	logger := log.GetLogger(ctx).WithField("component", "worker")

	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.stopping {
			w.cond.Wait()
		}

		if w.stopping {
			pending := w.queue
			w.queue = nil
			w.mu.Unlock()

			for _, cmd := range pending {
				cmd.complete(false, cancelledMessage)
			}

			close(w.exited)

			return
		}

		cmd := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.execute(ctx, logger, cmd)
	}
}

// execute runs one command outside any lock. Success is reported only after
// the follow-up registry refresh, so a caller observing success can assume
// the registry is current.
func (w *worker) execute(ctx context.Context, logger *logrus.Entry, cmd command) {
	if err := cmd.op(); err != nil {
		logger.Warnf("%s failed: %v", cmd.name, err)
		cmd.complete(false, err.Error())

		return
	}

	w.refresh(ctx)

	cmd.complete(true, cmd.name+" succeeded")
}
