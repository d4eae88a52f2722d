package gwactor_test

import (
	"testing"
	"time"

	"github.com/emberlink/gatewire/internal/gwactor"
	"github.com/emberlink/gatewire/internal/gwactor/gwactortest"
)

type testEvent struct {
	gwactor.InputBase
	n int
}

type testEffect struct {
	gwactor.EffectBase
	n int
}

func TestActorProcessesInputsSequentially(t *testing.T) {
	t.Parallel()

	rt := &gwactortest.FakeRuntime{}

	reducer := func(state int, input gwactor.Input) (int, []gwactor.Effect) {
		ev, ok := input.(testEvent)
		if !ok {
			return state, nil
		}
		next := state + ev.n
		return next, []gwactor.Effect{testEffect{n: ev.n}}
	}

	a := gwactor.New[int](0, reducer, rt)
	a.Start()
	defer a.Stop()

	for i := 1; i <= 5; i++ {
		if !a.Enqueue(testEvent{n: i}) {
			t.Fatalf("failed to enqueue %d", i)
		}
	}

	// Poll for state convergence (actor is async).
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.State() == 15 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if a.State() != 15 {
		t.Fatalf("state=%d, want 15", a.State())
	}

	effects := rt.Effects()
	if len(effects) != 5 {
		t.Fatalf("effects=%d, want 5", len(effects))
	}
}
