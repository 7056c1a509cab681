package boardctl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/domain"
)

func TestLoopPreservesPostOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			i := i
			_ = l.Post(func(context.Context) {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			})
		}
	}()
	wg.Wait()
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
	if len(got) != 100 {
		t.Fatalf("ran %d tasks", len(got))
	}
}

func TestLoopDoIsReentrant(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	depth := 0
	err := l.Do(ctx, func(ctx context.Context) error {
		if !l.OnLoop(ctx) {
			t.Errorf("task context not marked")
		}
		return l.Do(ctx, func(context.Context) error {
			depth++
			return nil
		})
	})
	if err != nil || depth != 1 {
		t.Fatalf("nested Do: err=%v depth=%d", err, depth)
	}
	if l.OnLoop(context.Background()) {
		t.Fatalf("plain context reported as loop context")
	}
}

func TestLoopPostFromTaskRunsAfterIt(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var order []string
	_ = l.Do(context.Background(), func(context.Context) error {
		_ = l.Post(func(context.Context) { order = append(order, "posted") })
		order = append(order, "task")
		return nil
	})
	_ = l.Sync(context.Background())
	if len(order) != 2 || order[0] != "task" || order[1] != "posted" {
		t.Fatalf("order = %v", order)
	}
}

func TestLoopDoRecoversPanic(t *testing.T) {
	l := NewLoop()
	defer l.Close()
	err := l.Do(context.Background(), func(context.Context) error { panic("boom") })
	if err == nil {
		t.Fatalf("expected error from panicking task")
	}
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("loop dead after panic: %v", err)
	}
}

func TestLoopClosedRejectsWork(t *testing.T) {
	l := NewLoop()
	ran := false
	_ = l.Post(func(context.Context) { ran = true })
	l.Close()
	if !ran {
		t.Fatalf("queued task dropped on close")
	}
	if err := l.Post(func(context.Context) {}); !errors.Is(err, domain.ErrLoopClosed) {
		t.Fatalf("Post after close = %v", err)
	}
	if err := l.Sync(context.Background()); !errors.Is(err, domain.ErrLoopClosed) {
		t.Fatalf("Sync after close = %v", err)
	}
}
