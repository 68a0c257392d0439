package infra

import (
	"context"
)

// ChanPool é um semáforo baseado em channel; implementa domain.SlotPool.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `max` (mínimo 1).
func NewChanPool(max int) *ChanPool {
	if max < 1 {
		max = 1
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	// ctx já cancelado nunca leva vaga, mesmo com o pool livre
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InFlight retorna quantas vagas estão ocupadas agora.
func (p *ChanPool) InFlight() int { return len(p.sem) }

func (p *ChanPool) Capacity() int { return cap(p.sem) }
