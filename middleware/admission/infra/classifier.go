package infra

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	// MinUserAgentLength é o menor tamanho (em caracteres) de user-agent não suspeito.
	MinUserAgentLength = 10

	botMarker = "bot"
)

// UserAgentClassifier marca como suspeito o user-agent vazio, com menos de
// MinUserAgentLength caracteres ou que contenha "bot".
//
// A busca por "bot" diferencia maiúsculas: "Googlebot" é marcado, "Bot/1.0 algo" não.
type UserAgentClassifier struct {
	log      *slog.Logger
	logEvery *rate.Sometimes
}

type ClassifierOption func(*UserAgentClassifier)

// WithClassifierLogger define o logger do diagnóstico de user-agent suspeito.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *UserAgentClassifier) { c.log = l }
}

// WithLogInterval limita o diagnóstico a no máximo uma linha por intervalo.
// Zero loga toda requisição marcada.
func WithLogInterval(d time.Duration) ClassifierOption {
	return func(c *UserAgentClassifier) {
		if d <= 0 {
			c.logEvery = nil
			return
		}
		c.logEvery = &rate.Sometimes{Interval: d}
	}
}

func NewUserAgentClassifier(opts ...ClassifierOption) *UserAgentClassifier {
	c := &UserAgentClassifier{
		log:      slog.Default(),
		logEvery: &rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSuspicious implementa domain.Classifier.
func (c *UserAgentClassifier) IsSuspicious(clientID, userAgent string) bool {
	if !suspiciousUserAgent(userAgent) {
		return false
	}

	if c.log != nil {
		report := func() {
			c.log.Warn("suspicious user agent detected", "user_agent", userAgent, "client", clientID)
		}
		if c.logEvery != nil {
			c.logEvery.Do(report)
		} else {
			report()
		}
	}
	return true
}

func suspiciousUserAgent(ua string) bool {
	return ua == "" || utf8.RuneCountInString(ua) < MinUserAgentLength || strings.Contains(ua, botMarker)
}
