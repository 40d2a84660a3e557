// ABOUTME: Tests for the typed event bus
// ABOUTME: Covers ordering, unsubscribe, panic isolation, and concurrent access

package eventbus

import (
	"slices"
	"sync"
	"testing"
)

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := New[string]()
	var received string

	bus.Subscribe(func(s string) {
		received = s
	})

	bus.Publish("hello")

	if received != "hello" {
		t.Errorf("received = %q, want %q", received, "hello")
	}
}

func TestBus_RegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := New[int]()
	var order []int
	for i := range 5 {
		bus.Subscribe(func(int) {
			order = append(order, i)
		})
	}

	bus.Publish(0)

	if !slices.Equal(order, []int{0, 1, 2, 3, 4}) {
		t.Errorf("order = %v, want [0 1 2 3 4]", order)
	}
}

func TestBus_PanickingHandlerIsolated(t *testing.T) {
	t.Parallel()

	bus := New[int]()
	var after int
	bus.Subscribe(func(int) { panic("boom") })
	bus.Subscribe(func(n int) { after = n })

	bus.Publish(7)

	if after != 7 {
		t.Errorf("second handler got %d, want 7", after)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus := New[string]()
	called := false

	unsub := bus.Subscribe(func(_ string) {
		called = true
	})

	unsub()
	unsub()
	bus.Publish("test")

	if called {
		t.Error("handler should not be called after unsubscribe")
	}
}

func TestBus_UnsubscribeKeepsOthersOrdered(t *testing.T) {
	t.Parallel()

	bus := New[int]()
	var got []string
	bus.Subscribe(func(int) { got = append(got, "a") })
	unsubB := bus.Subscribe(func(int) { got = append(got, "b") })
	bus.Subscribe(func(int) { got = append(got, "c") })

	unsubB()
	bus.Publish(1)

	if !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("got %v, want [a c]", got)
	}
}

func TestBus_CountAndClear(t *testing.T) {
	t.Parallel()

	bus := New[int]()

	unsub1 := bus.Subscribe(func(_ int) {})
	bus.Subscribe(func(_ int) {})

	if bus.Count() != 2 {
		t.Errorf("Count() = %d, want 2", bus.Count())
	}

	unsub1()
	if bus.Count() != 1 {
		t.Errorf("Count() = %d, want 1", bus.Count())
	}

	bus.Clear()
	if bus.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", bus.Count())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	t.Parallel()

	bus := New[int]()
	var mu sync.Mutex
	sum := 0
	bus.Subscribe(func(n int) {
		mu.Lock()
		sum += n
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(1)
		}()
	}
	wg.Wait()

	if sum != 10 {
		t.Errorf("sum = %d, want 10", sum)
	}
}
