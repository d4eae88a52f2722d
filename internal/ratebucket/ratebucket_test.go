package ratebucket_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emberlink/gatewire/internal/gwactor/gwactortest"
	"github.com/emberlink/gatewire/internal/ratebucket"
)

func TestAddRunsImmediatelyWithinCapacity(t *testing.T) {
	clock := gwactortest.NewFakeClock(time.Unix(0, 0))
	b := ratebucket.New(3, time.Minute, clock)

	var ran int
	for i := 0; i < 3; i++ {
		b.Add(func() { ran++ })
	}
	require.Equal(t, 3, ran)
	require.Zero(t, b.Pending())
}

func TestAddQueuesOnceCapacityExhausted(t *testing.T) {
	clock := gwactortest.NewFakeClock(time.Unix(0, 0))
	b := ratebucket.New(2, time.Minute, clock)

	var ran int
	b.Add(func() { ran++ })
	b.Add(func() { ran++ })
	b.Add(func() { ran++ }) // exceeds capacity, queued

	require.Equal(t, 2, ran)
	require.Equal(t, 1, b.Pending())
}

func TestDrainReleasesQueueAsTokensRefill(t *testing.T) {
	clock := gwactortest.NewFakeClock(time.Unix(0, 0))
	b := ratebucket.New(1, time.Second, clock)

	var ran int
	b.Add(func() { ran++ })
	b.Add(func() { ran++ }) // queued, no token left

	require.Equal(t, 1, ran)
	require.Equal(t, 1, b.Pending())

	clock.Advance(time.Second)
	b.Drain()

	require.Equal(t, 2, ran)
	require.Zero(t, b.Pending())
}

func TestLockForcesQueueingRegardlessOfCapacity(t *testing.T) {
	clock := gwactortest.NewFakeClock(time.Unix(0, 0))
	b := ratebucket.New(5, time.Minute, clock)
	b.Lock()

	var ran int
	b.Add(func() { ran++ })

	require.Zero(t, ran)
	require.Equal(t, 1, b.Pending())
	require.True(t, b.Locked())

	b.Unlock()
	require.Equal(t, 1, ran)
	require.False(t, b.Locked())
}

func TestClearDiscardsQueuedWorkWithoutRunningIt(t *testing.T) {
	clock := gwactortest.NewFakeClock(time.Unix(0, 0))
	b := ratebucket.New(1, time.Minute, clock)
	b.Add(func() {})
	b.Add(func() { t.Fatal("queued work must not run after Clear") })

	require.Equal(t, 1, b.Pending())
	b.Clear()
	require.Zero(t, b.Pending())

	clock.Advance(time.Minute)
	b.Drain()
}
