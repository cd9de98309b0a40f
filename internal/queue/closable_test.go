package queue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPop(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	v, ok := q.Pop()
	if !ok || v != 1 {
		t.Fatalf("expected 1, true; got %v, %v", v, ok)
	}
	v, ok = q.Pop()
	if !ok || v != 2 {
		t.Fatalf("expected 2, true; got %v, %v", v, ok)
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	q := New[string]()
	done := make(chan struct{})
	var gotOK bool
	go func() {
		_, gotOK = q.Pop()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
	if gotOK {
		t.Fatal("expected ok=false after close with no pending items")
	}
}

func TestCloseDrainsPendingItems(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.Close()

	v, ok := q.Pop()
	if !ok || v != 1 {
		t.Fatalf("expected to drain 1 after close, got %v %v", v, ok)
	}
	v, ok = q.Pop()
	if !ok || v != 2 {
		t.Fatalf("expected to drain 2 after close, got %v %v", v, ok)
	}
	_, ok = q.Pop()
	if ok {
		t.Fatal("expected ok=false once drained")
	}
}

func TestPushAfterCloseIsNoop(t *testing.T) {
	q := New[int]()
	q.Close()
	q.Push(1)
	if q.Len() != 0 {
		t.Fatalf("expected push after close to be dropped, len=%d", q.Len())
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push(i)
		}(i)
	}
	wg.Wait()
	q.Close()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != n {
		t.Fatalf("expected %d items, got %d", n, count)
	}
}
