package infra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestTracker_FirstCheckNeverRejects(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 1, Window: time.Second})

	assert.False(t, tr.Check("10.0.0.1", t0))
	assert.False(t, tr.Check("10.0.0.2", t0))
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_RejectsAfterThresholdWithinWindow(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		assert.False(t, tr.Check("k", at(i*10)), "request %d should be allowed", i+1)
	}
	assert.True(t, tr.Check("k", at(60)), "6th request should be rejected")
}

func TestTracker_WindowBoundaryIsExclusive(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 1, Window: time.Second})

	require.False(t, tr.Check("k", at(0)))
	assert.True(t, tr.Check("k", at(999)), "stamp 999ms old is still inside the window")
	assert.False(t, tr.Check("k", at(1000)), "stamp exactly one window old is expired")
}

func TestTracker_ResetsAfterIdleWindow(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 2, Window: time.Second})

	require.False(t, tr.Check("k", at(0)))
	require.False(t, tr.Check("k", at(100)))
	require.True(t, tr.Check("k", at(200)))

	assert.False(t, tr.Check("k", at(1500)))
	assert.Equal(t, 1, tr.Count("k"))
}

func TestTracker_RejectedRequestsAreNotRecorded(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 3, Window: time.Minute})

	for i := 0; i < 50; i++ {
		tr.Check("k", at(i))
		assert.LessOrEqual(t, tr.Count("k"), 3)
	}
	assert.Equal(t, 3, tr.Count("k"))
}

func TestTracker_PrunesEvenWhenRejecting(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 2, Window: time.Second})

	require.False(t, tr.Check("k", at(0)))
	require.False(t, tr.Check("k", at(900)))
	require.True(t, tr.Check("k", at(950)))

	// em 1000 o primeiro instante expira e abre espaço para mais um
	assert.False(t, tr.Check("k", at(1000)))
	assert.True(t, tr.Check("k", at(1001)))
	assert.Equal(t, 2, tr.Count("k"))
}

func TestTracker_ClientsAreIndependent(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 1, Window: time.Minute})

	require.False(t, tr.Check("a", t0))
	require.True(t, tr.Check("a", t0))

	assert.False(t, tr.Check("b", t0), "b should not be affected")
}

func TestTracker_EmptyClientIDSharesOneBucket(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 1, Window: time.Minute})

	require.False(t, tr.Check("", t0))
	assert.True(t, tr.Check("", t0))
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_DefaultsForNonPositiveConfig(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{}, WithShards(0))

	assert.Equal(t, domain.DefaultThreshold, tr.Threshold())
	assert.Equal(t, domain.DefaultWindow, tr.Window())
	assert.Len(t, tr.shards, defaultShards)
}

func TestTracker_SweepEvictsIdleClients(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 10, Window: time.Second}, WithShards(4))

	tr.Check("idle", at(0))
	tr.Check("busy", at(0))
	tr.Check("busy", at(800))

	evicted := tr.Sweep(at(1200))

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 0, tr.Count("idle"))
	assert.Equal(t, 1, tr.Count("busy"))

	// cliente removido recomeça como cliente novo
	assert.False(t, tr.Check("idle", at(1300)))
}

func TestTracker_JanitorUsesInjectedClock(t *testing.T) {
	var mu sync.Mutex
	now := t0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	tr := NewTracker(domain.TrackerConfig{Threshold: 10, Window: time.Second},
		WithCleanupEvery(time.Millisecond), WithClock(clock))
	tr.Check("k", clock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.StartJanitor(ctx)

	// o relógio real avança, mas o relógio injetado não: nada expira
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, tr.Len())

	mu.Lock()
	now = t0.Add(2 * time.Second)
	mu.Unlock()

	require.Eventually(t, func() bool { return tr.Len() == 0 }, time.Second, time.Millisecond)
}

func TestTracker_JanitorStopsWithContext(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 10, Window: time.Millisecond},
		WithCleanupEvery(time.Millisecond), WithClock(func() time.Time { return t0.Add(time.Hour) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := tr.StartJanitor(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop after cancel")
	}

	// depois de parar, clientes expirados não são mais removidos
	tr.Check("k", t0)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_JanitorDisabled(t *testing.T) {
	tr := NewTracker(domain.TrackerConfig{}, WithCleanupEvery(0))

	select {
	case <-tr.StartJanitor(context.Background()):
	default:
		t.Fatalf("expected closed channel when cleanup is disabled")
	}
}

func TestTracker_ConcurrentSameClientAdmitsExactlyThreshold(t *testing.T) {
	const threshold = 50
	tr := NewTracker(domain.TrackerConfig{Threshold: threshold, Window: time.Hour})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !tr.Check("1.2.3.4", t0) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(threshold), admitted.Load())
}

func BenchmarkTracker_Check(b *testing.B) {
	tr := NewTracker(domain.TrackerConfig{Threshold: 1000, Window: time.Minute})
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("10.0.%d.%d", i/256, i%256)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			tr.Check(keys[i%len(keys)], time.Now())
			i++
		}
	})
}
