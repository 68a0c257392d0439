package application

import (
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Pipeline junta o rate limit e a classificação do user-agent numa única decisão.
//
// Não sabe nada sobre HTTP. A ordem é fixa: primeiro o orçamento de requisições, então a
// classificação só roda para quem coube no orçamento.
type Pipeline struct {
	Tracker    domain.RateTracker
	Classifier domain.Classifier
}

// Evaluate nunca falha. Tracker ou Classifier nil pulam a etapa.
func (p Pipeline) Evaluate(clientID, userAgent string, now time.Time) domain.Decision {
	if p.Tracker != nil && p.Tracker.Check(clientID, now) {
		return domain.RateLimited
	}
	if p.Classifier != nil && p.Classifier.IsSuspicious(clientID, userAgent) {
		return domain.Forbidden
	}
	return domain.Allow
}
