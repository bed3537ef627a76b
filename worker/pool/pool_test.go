package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool_DefaultsToCPUCount(t *testing.T) {
	p := NewWorkerPool(0)
	if p.Size() <= 0 {
		t.Errorf("Expected positive pool size, got %d", p.Size())
	}

	if got := NewWorkerPool(3).Size(); got != 3 {
		t.Errorf("Expected pool size 3, got %d", got)
	}
}

func TestDo_ReturnsResult(t *testing.T) {
	p := NewWorkerPool(2)

	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
}

func TestDo_PropagatesError(t *testing.T) {
	p := NewWorkerPool(1)
	want := errors.New("decode failed")

	_, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		return "", want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}

func TestDo_BoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(2)

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), p, func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("Expected at most 2 concurrent jobs, saw %d", peak)
	}
}

func TestDo_DeadlineReturnsEarly(t *testing.T) {
	p := NewWorkerPool(1)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Expected Do to return at the deadline, took %s", time.Since(start))
	}
}

func TestDo_RecoversPanic(t *testing.T) {
	p := NewWorkerPool(1)

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("Expected error from panicking job, got nil")
	}

	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("Expected pool to keep working after a panic, got %d, %v", got, err)
	}
}

func TestSubmit_WaitRunsAllTasks(t *testing.T) {
	p := NewWorkerPool(3)

	var count int32
	for i := 0; i < 10; i++ {
		p.Submit(context.Background(), func(ctx context.Context) {
			atomic.AddInt32(&count, 1)
		})
	}
	p.Wait()

	if count != 10 {
		t.Errorf("Expected 10 tasks to run, got %d", count)
	}
}

func TestSubmit_DropsQueuedTasksAfterCancel(t *testing.T) {
	p := NewWorkerPool(1)
	started := make(chan struct{})
	block := make(chan struct{})

	p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-block
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	p.Submit(ctx, func(ctx context.Context) { atomic.AddInt32(&ran, 1) })

	time.Sleep(50 * time.Millisecond)
	close(block)
	p.Wait()

	if ran != 0 {
		t.Errorf("Expected queued task to be dropped, it ran %d times", ran)
	}
}
