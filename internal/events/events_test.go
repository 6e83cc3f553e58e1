package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestDispatchRunsListenersInOrder(t *testing.T) {
	d := NewDispatcher()
	var got []string
	Subscribe(d, func(_ context.Context, ev TextChanged) error {
		got = append(got, "first:"+ev.Doc)
		return nil
	})
	Subscribe(d, func(_ context.Context, ev TextChanged) error {
		got = append(got, "second:"+ev.Doc)
		return nil
	})
	Subscribe(d, func(_ context.Context, ev FocusChanged) error {
		got = append(got, "focus:"+ev.Doc)
		return nil
	})

	if err := d.Dispatch(context.Background(), TextChanged{Doc: "a"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), FocusChanged{Doc: "b"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := []string{"first:a", "second:a", "focus:b"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDispatchJoinsErrors(t *testing.T) {
	d := NewDispatcher()
	errA := errors.New("a")
	errB := errors.New("b")
	ran := 0
	Subscribe(d, func(context.Context, ConfigChanged) error { ran++; return errA })
	Subscribe(d, func(context.Context, ConfigChanged) error { ran++; return nil })
	Subscribe(d, func(context.Context, ConfigChanged) error { ran++; return errB })

	err := d.Dispatch(context.Background(), ConfigChanged{})
	if ran != 3 {
		t.Fatalf("expected all listeners to run, ran %d", ran)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestDispatchWithoutListeners(t *testing.T) {
	d := NewDispatcher()
	if err := d.Dispatch(context.Background(), DocumentClosed{Doc: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Dispatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatchIsSerialized(t *testing.T) {
	d := NewDispatcher()
	var mu sync.Mutex
	active, peak := 0, 0
	Subscribe(d, func(context.Context, TipDismissed) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), TipDismissed{ID: "x"})
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected one listener at a time, saw %d", peak)
	}
}

func TestName(t *testing.T) {
	if Name(TextChanged{}) != "textChanged" || Name(nil) != "" {
		t.Fatal("unexpected event names")
	}
}
