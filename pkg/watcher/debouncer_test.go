package watcher

import (
	"context"
	"testing"
	"time"
)

func TestDebouncerBatchesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 20*time.Millisecond, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 3; i++ {
		input <- ChangeEvent{Paths: []string{"projects.csv"}, Timestamp: time.Now()}
	}

	select {
	case ev := <-d.Output():
		if len(ev.Paths) != 3 {
			t.Errorf("expected 3 accumulated paths, got %d", len(ev.Paths))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Paths: []string{"projects.csv"}, Timestamp: time.Now()}
	// Give the run loop a moment to pick up the event before closing.
	time.Sleep(50 * time.Millisecond)
	close(input)

	select {
	case ev, ok := <-d.Output():
		if !ok {
			t.Fatal("output closed without flushing pending event")
		}
		if len(ev.Paths) != 1 {
			t.Errorf("expected 1 path, got %d", len(ev.Paths))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush on close")
	}

	if _, ok := <-d.Output(); ok {
		t.Error("expected output channel to be closed after input close")
	}
}
