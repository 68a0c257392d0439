package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultShards       = 32
	defaultCleanupEvery = 2 * time.Minute
)

// Tracker guarda, em memória, os instantes das requisições recentes de cada cliente
// (janela deslizante).
//
// Os registros ficam em shards com lock próprio, escolhidos pelo hash do cliente: a
// sequência podar-contar-anexar de um cliente é atômica sem um lock global.
type Tracker struct {
	threshold    int
	window       time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
	shards       []*trackerShard
}

type trackerShard struct {
	mu      sync.Mutex
	records map[string][]time.Time
}

type TrackerOption func(*Tracker)

// WithShards define o número de shards. Valores menores que 1 são ignorados.
func WithShards(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.shards = make([]*trackerShard, n)
		}
	}
}

func WithCleanupEvery(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.cleanupEvery = d }
}

// WithClock define o relógio usado pelo janitor. Deve ser o mesmo relógio que gera o
// instante passado para Check, senão a limpeza e a janela discordam.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(cfg domain.TrackerConfig, opts ...TrackerOption) *Tracker {
	cfg = cfg.WithDefaults()
	t := &Tracker{
		threshold:    cfg.Threshold,
		window:       cfg.Window,
		cleanupEvery: defaultCleanupEvery,
		now:          time.Now,
		shards:       make([]*trackerShard, defaultShards),
	}
	for _, opt := range opts {
		opt(t)
	}
	for i := range t.shards {
		t.shards[i] = &trackerShard{records: make(map[string][]time.Time)}
	}
	return t
}

func (t *Tracker) Threshold() int { return t.threshold }

func (t *Tracker) Window() time.Duration { return t.window }

func (t *Tracker) CleanupEvery() time.Duration { return t.cleanupEvery }

func (t *Tracker) shard(clientID string) *trackerShard {
	return t.shards[xxhash.Sum64String(clientID)%uint64(len(t.shards))]
}

// Check implementa domain.RateTracker.
//
// A primeira requisição de um cliente nunca é rejeitada. Depois, instantes com idade
// >= janela são descartados e a requisição é rejeitada se o que sobrou já atingiu o
// threshold. Requisição rejeitada não é registrada.
func (t *Tracker) Check(clientID string, now time.Time) bool {
	s := t.shard(clientID)

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps, ok := s.records[clientID]
	if !ok {
		s.records[clientID] = []time.Time{now}
		return false
	}

	stamps = t.prune(stamps, now)
	if len(stamps) >= t.threshold {
		s.records[clientID] = stamps
		return true
	}

	s.records[clientID] = append(stamps, now)
	return false
}

// prune filtra stamps no lugar, mantendo os mais novos que a janela em now.
func (t *Tracker) prune(stamps []time.Time, now time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < t.window {
			kept = append(kept, ts)
		}
	}
	clear(stamps[len(kept):])
	return kept
}

// Count retorna quantos instantes estão guardados para clientID, sem podar.
func (t *Tracker) Count(clientID string) int {
	s := t.shard(clientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[clientID])
}

// Len retorna quantos clientes estão sendo rastreados.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.records)
		s.mu.Unlock()
	}
	return n
}

// Sweep poda todos os registros em now e remove clientes que ficaram vazios.
// Retorna quantos clientes foram removidos.
func (t *Tracker) Sweep(now time.Time) int {
	evicted := 0
	for _, s := range t.shards {
		s.mu.Lock()
		for id, stamps := range s.records {
			stamps = t.prune(stamps, now)
			if len(stamps) == 0 {
				delete(s.records, id)
				evicted++
				continue
			}
			s.records[id] = stamps
		}
		s.mu.Unlock()
	}
	return evicted
}

// StartJanitor inicia uma goroutine que chama Sweep(now()) a cada CleanupEvery, usando o
// relógio de WithClock. Pare cancelando o contexto; o canal retornado fecha quando a
// goroutine termina (ou imediatamente, se a limpeza estiver desativada).
func (t *Tracker) StartJanitor(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if t.cleanupEvery <= 0 {
		close(done)
		return done
	}

	tk := time.NewTicker(t.cleanupEvery)
	go func() {
		defer close(done)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				t.Sweep(t.now())
			}
		}
	}()
	return done
}
