package queue

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueDrainOrder(t *testing.T) {
	q := New()
	q.Enqueue("one")
	q.Enqueue("two")
	q.Enqueue("three")

	var got []string
	q.Drain(func(s string) { got = append(got, s) })

	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("expected empty after drain")
	}
}

func TestEnqueueFullDropsWithoutLosingPrior(t *testing.T) {
	q := New()
	for i := 0; i < Size; i++ {
		if res := q.Enqueue("x"); res != Ok {
			t.Fatalf("unexpected %v at %d", res, i)
		}
	}
	if res := q.Enqueue("overflow"); res != Full {
		t.Fatalf("expected Full, got %v", res)
	}
	if q.Len() != Size {
		t.Fatalf("expected prior entries intact, got len %d", q.Len())
	}
}

func TestWakeupCoalesces(t *testing.T) {
	w := NewWakeup()
	w.Fire()
	w.Fire()
	w.Fire()

	select {
	case <-w.C():
	default:
		t.Fatal("expected a pending wakeup")
	}
	select {
	case <-w.C():
		t.Fatal("expected only one coalesced wakeup")
	default:
	}
}

func TestWakeupCrossGoroutine(t *testing.T) {
	w := NewWakeup()
	done := make(chan struct{})
	go func() {
		<-w.C()
		close(done)
	}()
	w.Fire()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wakeup not observed")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < Size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue("x")
		}()
	}
	wg.Wait()
	if q.Len() != Size {
		t.Fatalf("expected %d entries, got %d", Size, q.Len())
	}
}
