package uiloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	loop := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, cancel
}

func TestPostRunsInFIFOOrder(t *testing.T) {
	loop, _ := startLoop(t)
	var got []int
	for i := 0; i < 100; i++ {
		loop.Post(func() { got = append(got, i) })
	}
	if err := loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected FIFO order, got %v at %d", v, i)
		}
	}
}

func TestPostFromManyGoroutinesRunsSerially(t *testing.T) {
	loop, _ := startLoop(t)
	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				loop.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	if err := loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if counter != 800 {
		t.Fatalf("expected 800 increments, got %d", counter)
	}
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	loop, _ := startLoop(t)
	loop.Post(func() { panic("boom") })
	ran := false
	if err := loop.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if !ran {
		t.Fatalf("expected loop to keep running after panic")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	loop := New(nil)
	ran := 0
	for i := 0; i < 3; i++ {
		loop.Post(func() { ran++ })
	}
	loop.Close()
	if loop.Post(func() { ran++ }) {
		t.Fatalf("expected post after close to fail")
	}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ran != 3 {
		t.Fatalf("expected queued work to drain, got %d", ran)
	}
	if err := loop.Do(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	loop := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
