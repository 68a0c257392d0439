package domain

import "time"

// Key identifica o cliente da requisição (normalmente o IP remoto).
type Key string

// Decision é o resultado da avaliação de uma requisição.
type Decision int

const (
	Allow Decision = iota
	RateLimited
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RateLimited:
		return "rate_limited"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Allowed diz se a requisição pode seguir para a aplicação.
func (d Decision) Allowed() bool { return d == Allow }

const (
	DefaultThreshold = 100
	DefaultWindow    = 60 * time.Second
)

// TrackerConfig é fixado na construção e não muda depois.
type TrackerConfig struct {
	// Threshold é o máximo de requisições admitidas por Window.
	Threshold int
	Window    time.Duration
}

// WithDefaults troca valores <= 0 por DefaultThreshold e DefaultWindow.
func (c TrackerConfig) WithDefaults() TrackerConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// RateTracker mantém o histórico de requisições por cliente.
//
// Check retorna true quando o cliente estourou o orçamento no instante now e deve ser
// rejeitado. Nunca falha: cliente desconhecido é cliente novo.
type RateTracker interface {
	Check(clientID string, now time.Time) bool
}

// Classifier marca requisições com cara de tráfego automatizado a partir do
// user-agent declarado. User-agent vazio é suspeito, nunca erro.
type Classifier interface {
	IsSuspicious(clientID, userAgent string) bool
}
