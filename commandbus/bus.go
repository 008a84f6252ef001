package commandbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultQueueCapacity bounds the number of commands waiting to be
// consumed before Submit/SubmitAsync start applying backpressure to
// callers, per spec.md §4.8's "bounded" reply-channel wait.
const DefaultQueueCapacity = 256

// ErrBusClosed is returned by Submit/SubmitAsync once Shutdown has been
// called, and by a Command's reply if the bus shuts down before it runs.
var ErrBusClosed = errors.New("commandbus: bus is shut down")

// Result is what a Command's Exec function returns: an opaque value (the
// caller knows how to type-assert it, since the bus itself is
// payload-agnostic) and an error.
type Result struct {
	Value any
	Err   error
}

// Command is one unit of work destined for the single consumer goroutine.
// Op is a human-readable label used only for logging and metrics; Exec is
// the actual work, run with the bus's owning goroutine's exclusive access
// to the Network component.
type Command struct {
	Op    string
	Exec  func(ctx context.Context) (any, error)
	reply chan Result
}

// shutdownOp is the sentinel Command.Op the owner goroutine recognizes as
// a request to drain the queue and terminate, per spec.md §4.8's
// drain-then-terminate shutdown contract.
const shutdownOp = "__shutdown__"

// Bus is a bounded, single-consumer command queue.
type Bus struct {
	queue  chan Command
	done   chan struct{}
	logger *logrus.Entry
}

// New creates a Bus with the given queue capacity. Run must be called
// (typically in its own goroutine) before any Submit call can complete.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Bus{
		queue:  make(chan Command, capacity),
		done:   make(chan struct{}),
		logger: logrus.WithField("package", "commandbus"),
	}
}

// Run consumes commands from the queue on the calling goroutine until
// Shutdown is requested or ctx is canceled, draining any commands already
// queued before returning so no Submit caller is left blocked forever.
func (b *Bus) Run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case cmd, ok := <-b.queue:
			if !ok {
				return
			}
			if cmd.Op == shutdownOp {
				b.drain()
				return
			}
			b.execute(ctx, cmd)
		case <-ctx.Done():
			b.drain()
			return
		}
	}
}

// execute runs one command's work and delivers the result, recovering
// from a panicking Exec so one bad command cannot take down the owner
// goroutine and strand every future caller.
func (b *Bus) execute(ctx context.Context, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{"op": cmd.Op, "panic": r}).Error("command panicked")
			cmd.reply <- Result{Err: fmt.Errorf("commandbus: command %q panicked: %v", cmd.Op, r)}
		}
	}()

	value, err := cmd.Exec(ctx)
	cmd.reply <- Result{Value: value, Err: err}
}

// drain fails every command left in the queue with ErrBusClosed rather
// than leaving their Submit callers blocked indefinitely.
func (b *Bus) drain() {
	for {
		select {
		case cmd, ok := <-b.queue:
			if !ok {
				return
			}
			if cmd.Op != shutdownOp {
				cmd.reply <- Result{Err: ErrBusClosed}
			}
		default:
			return
		}
	}
}

// Submit enqueues exec and blocks until it runs or ctx is done, for
// synchronous Host Interface calls (spec.md §4.8).
func (b *Bus) Submit(ctx context.Context, op string, exec func(ctx context.Context) (any, error)) (any, error) {
	cmd := Command{Op: op, Exec: exec, reply: make(chan Result, 1)}

	select {
	case <-b.done:
		return nil, ErrBusClosed
	default:
	}

	select {
	case b.queue <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrBusClosed
	}

	select {
	case res := <-cmd.reply:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		select {
		case res := <-cmd.reply:
			return res.Value, res.Err
		default:
			return nil, ErrBusClosed
		}
	}
}

// SubmitAsync enqueues exec and returns immediately with a Future the
// caller can Await later, for asynchronous Host Interface calls.
func (b *Bus) SubmitAsync(op string, exec func(ctx context.Context) (any, error)) *Future[any] {
	f := newFuture[any]()
	cmd := Command{Op: op, Exec: exec, reply: make(chan Result, 1)}

	select {
	case b.queue <- cmd:
		go func() {
			select {
			case res := <-cmd.reply:
				f.resolve(res.Value, res.Err)
			case <-b.done:
				f.resolve(nil, ErrBusClosed)
			}
		}()
	case <-b.done:
		f.resolve(nil, ErrBusClosed)
	default:
		f.resolve(nil, fmt.Errorf("commandbus: queue full"))
	}

	return f
}

// SubmitTyped is SubmitAsync generalized to a concrete result type T,
// letting Host Interface async methods return a *Future[T] directly
// instead of *Future[any] plus a manual type assertion.
func SubmitTyped[T any](b *Bus, op string, exec func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	cmd := Command{
		Op: op,
		Exec: func(ctx context.Context) (any, error) {
			return exec(ctx)
		},
		reply: make(chan Result, 1),
	}

	select {
	case b.queue <- cmd:
		go func() {
			select {
			case res := <-cmd.reply:
				f.resolve(res.Value, res.Err)
			case <-b.done:
				f.resolve(nil, ErrBusClosed)
			}
		}()
	case <-b.done:
		f.resolve(nil, ErrBusClosed)
	default:
		f.resolve(nil, fmt.Errorf("commandbus: queue full"))
	}

	return f
}

// Shutdown requests the owner goroutine drain the queue and stop, then
// waits for Run to return or ctx to expire.
func (b *Bus) Shutdown(ctx context.Context) error {
	select {
	case b.queue <- Command{Op: shutdownOp, reply: make(chan Result, 1)}:
	default:
		// Queue is full; Run will still see context cancellation or drain
		// naturally once it catches up. Fall through to waiting on done.
	}

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
