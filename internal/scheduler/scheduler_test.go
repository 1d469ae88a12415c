package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSchedulerRunsTasksInDeadlineOrder(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			n := len(order)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
		}
	}

	s.After(60*time.Millisecond, "third", record("third"))
	s.After(10*time.Millisecond, "first", record("first"))
	s.After(30*time.Millisecond, "second", record("second"))
	go s.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", s.Pending())
	}
}

func TestSchedulerAcceptsTasksWhileRunning(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ran := make(chan struct{})
	s.After(0, "immediate", func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task scheduled after Run started did not run")
	}
}

func TestSchedulerDoesNotRunBeforeDeadline(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	ran := make(chan struct{}, 1)
	s.After(time.Hour, "later", func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("task ran before its deadline")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", s.Pending())
	}
}

func TestSchedulerSurvivesPanickingTask(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	ran := make(chan struct{})
	s.After(0, "panics", func() { panic("boom") })
	s.After(5*time.Millisecond, "after", func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped after a panicking task")
	}
}

func TestSchedulerStopRunsDueTasksOnly(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dueRan, laterRan bool
	s.After(0, "due", func() { dueRan = true })
	s.After(time.Hour, "later", func() { laterRan = true })
	s.Run(ctx)

	if !dueRan || laterRan {
		t.Fatalf("due ran = %v, later ran = %v", dueRan, laterRan)
	}
	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", s.Pending())
	}
}
