package application

import (
	"context"
	"testing"
	"time"

	"admission-gateway/middleware/admission/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPool struct {
	acquired int
}

func (p *countingPool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	release, ok := ConcurrencyService{}.Acquire(context.Background())
	require.True(t, ok)
	release()
}

func TestConcurrencyService_Acquire_TimesOutWhenFull(t *testing.T) {
	svc := ConcurrencyService{Pool: infra.NewChanPool(1), AcquireTimeout: 10 * time.Millisecond}

	release, ok := svc.Acquire(context.Background())
	require.True(t, ok)

	_, ok = svc.Acquire(context.Background())
	assert.False(t, ok, "second acquire should time out while the only slot is held")

	release()
	release2, ok := svc.Acquire(context.Background())
	assert.True(t, ok, "slot should be free after release")
	release2()
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &countingPool{}
	svc := ConcurrencyService{Pool: pool}

	_, ok := svc.Acquire(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, pool.acquired)
}

func TestConcurrencyService_Acquire_HonoursCancelledContext(t *testing.T) {
	svc := ConcurrencyService{Pool: infra.NewChanPool(1)}
	release, ok := svc.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = svc.Acquire(ctx)
	assert.False(t, ok)
}
