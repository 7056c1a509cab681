package boardctl

import (
	"context"
	"fmt"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

type loopKey struct{}

type task struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// Loop is the single logical update thread. Tasks run one at a time in the
// order they were posted; Post never blocks, so authorities may post from
// their own goroutines and the loop may post to itself.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []task
	closed bool
	done   chan struct{}
	base   context.Context
}

func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	l.base = context.WithValue(context.Background(), loopKey{}, l)
	go l.run()
	return l
}

// OnLoop reports whether ctx was handed out by this loop to a running task.
func (l *Loop) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

// Post queues fn behind every task posted before it.
func (l *Loop) Post(fn func(ctx context.Context)) error {
	return l.enqueue(task{ctx: l.base, fn: fn})
}

// Do runs fn on the loop and waits for it. Called from inside a loop task it
// runs fn inline.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.OnLoop(ctx) {
		return fn(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result := make(chan error, 1)
	err := l.enqueue(task{
		ctx: context.WithValue(ctx, loopKey{}, l),
		fn: func(c context.Context) {
			var err error
			defer func() {
				if r := recover(); r != nil {
					obslog.L().Error("board_loop_panic", zap.String("panic", fmt.Sprint(r)))
					err = fmt.Errorf("loop task panic: %v", r)
				}
				result <- err
			}()
			err = fn(c)
		},
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until every task posted before the call has run.
func (l *Loop) Sync(ctx context.Context) error {
	return l.Do(ctx, func(context.Context) error { return nil })
}

// Close stops accepting tasks, lets queued ones finish and waits for the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) enqueue(t task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.ErrLoopClosed
	}
	l.queue = append(l.queue, t)
	l.cond.Signal()
	return nil
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue[0] = task{}
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.exec(t)
	}
}

func (l *Loop) exec(t task) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("board_loop_panic", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	t.fn(t.ctx)
}
