package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrdering(t *testing.T) {
	q := New()
	defer q.Destroy()

	var mu sync.Mutex
	var order []int
	var futures []*Future
	for i := 0; i < 5; i++ {
		i := i
		f, err := q.Submit("write", func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}, SubmitOptions{})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		futures = append(futures, f)
	}
	for _, f := range futures {
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("FIFO violated: order = %v", order)
		}
	}
}

func TestUnshiftJumpsPendingQueueButNotRunningTask(t *testing.T) {
	q := New()
	defer q.Destroy()

	started := make(chan struct{})
	release := make(chan struct{})
	_, err := q.Submit("slow", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	var order []string
	var mu sync.Mutex
	record := func(label string) Func {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			return nil, nil
		}
	}
	fifoFuture, _ := q.Submit("fifo", record("fifo"), SubmitOptions{})
	syncFuture, _ := q.Submit("sync", record("sync"), SubmitOptions{Unshift: true})

	close(release)
	if _, err := fifoFuture.Wait(context.Background()); err != nil {
		t.Fatalf("Wait fifo: %v", err)
	}
	if _, err := syncFuture.Wait(context.Background()); err != nil {
		t.Fatalf("Wait sync: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "sync" || order[1] != "fifo" {
		t.Fatalf("expected unshifted sync task ahead of fifo task, got %v", order)
	}
}

func TestEnqueueCallbackInvokedSynchronously(t *testing.T) {
	q := New()
	defer q.Destroy()

	var got EnqueueInfo
	_, err := q.Submit("write", func(ctx context.Context) (any, error) { return nil, nil }, SubmitOptions{
		EnqueueCallback: func(info EnqueueInfo) { got = info },
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Label != "write" || got.TaskId == "" {
		t.Fatalf("enqueue callback did not fire synchronously with expected fields: %+v", got)
	}
}

func TestStopCancelsPendingTasksButAwaitsRunning(t *testing.T) {
	q := New()
	defer q.Destroy()

	started := make(chan struct{})
	release := make(chan struct{})
	runningFuture, _ := q.Submit("running", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "done", nil
	}, SubmitOptions{})
	<-started

	pendingFuture, _ := q.Submit("pending", func(ctx context.Context) (any, error) {
		return nil, nil
	}, SubmitOptions{})

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	if _, err := pendingFuture.Wait(context.Background()); !errors.Is(err, ErrTaskCancel) {
		t.Fatalf("expected ErrTaskCancel, got %v", err)
	}
	select {
	case <-stopped:
		t.Fatal("Stop returned while the running task was still in progress")
	default:
	}

	close(release)
	<-stopped
	result, err := runningFuture.Wait(context.Background())
	if err != nil || result != "done" {
		t.Fatalf("running task should complete normally, got %v, %v", result, err)
	}
}

func TestSubmitRejectsAfterClose(t *testing.T) {
	q := New()
	defer q.Destroy()

	if err := q.Close(0); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := q.Submit("late", func(ctx context.Context) (any, error) { return nil, nil }, SubmitOptions{}); !errors.Is(err, ErrDatabaseClosing) {
		t.Fatalf("expected ErrDatabaseClosing, got %v", err)
	}
}

func TestCloseTimesOutWhenTaskRunsLong(t *testing.T) {
	q := New()
	defer q.Destroy()

	release := make(chan struct{})
	_, _ = q.Submit("slow", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}, SubmitOptions{})

	err := q.Close(20 * time.Millisecond)
	close(release)
	if !errors.Is(err, ErrDatabaseCloseTimeout) {
		t.Fatalf("expected ErrDatabaseCloseTimeout, got %v", err)
	}
}
