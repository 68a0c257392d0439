package admission

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type KeyFunc func(r *http.Request) string

type Options struct {
	Pipeline application.Pipeline
	Stats    domain.StatsStore
	KeyFn    KeyFunc
	// KeyHeader, se definido, agrupa clientes por esse header em vez do endereço.
	KeyHeader          string
	TrustXForwardedFor bool
	// RetryAfter vai no 429. Padrão: a janela do tracker, quando conhecida.
	RetryAfter time.Duration
	AddHeaders bool
	// Now é o relógio passado ao pipeline. Padrão: time.Now.
	// Deve ser o mesmo relógio do infra.WithClock do tracker.
	Now    func() time.Time
	Logger *slog.Logger
}

// windowInfo é implementado por trackers que sabem informar o orçamento.
type windowInfo interface {
	Threshold() int
	Window() time.Duration
}

func (o *Options) setDefaults() {
	if o.KeyFn == nil {
		o.KeyFn = DefaultKeyFunc(o.KeyHeader, o.TrustXForwardedFor)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = time.Second
		if wi, ok := o.Pipeline.Tracker.(windowInfo); ok {
			o.RetryAfter = wi.Window()
		}
	}
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		return addr
	}
}

// Middleware admite ou rejeita cada requisição usando o pipeline.
//
// RateLimited vira 429 e Forbidden vira 403, ambos com corpo texto puro; o que for
// permitido segue para next.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	opts.setDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := requestID(r.Header.Get(requestIDHeader))
			w.Header().Set(requestIDHeader, reqID)

			key := opts.KeyFn(r)
			if opts.AddHeaders {
				setBudgetHeaders(w.Header(), opts.Pipeline.Tracker)
			}

			dec := opts.evaluate(r.Context(), key, r.UserAgent(), r.Method, r.URL.Path)
			if dec.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			opts.Logger.Info("request rejected",
				"request_id", reqID,
				"decision", dec.String(),
				"client", key,
				"method", r.Method,
				"path", r.URL.Path,
			)
			status, body := rejection(dec)
			if dec == domain.RateLimited {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(opts.RetryAfter)))
			}
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		})
	}
}

// evaluate roda o pipeline e registra a decisão. Falha de stats só vai para o log.
func (o *Options) evaluate(ctx context.Context, key, userAgent, method, path string) domain.Decision {
	now := o.Now()
	dec := o.Pipeline.Evaluate(key, userAgent, now)

	if o.Stats != nil {
		err := o.Stats.Record(ctx, domain.StatsEvent{
			Key:      domain.Key(key),
			Decision: dec,
			Method:   method,
			Path:     path,
			At:       now,
		})
		if err != nil {
			o.Logger.Debug("admission stats not recorded", "error", err)
		}
	}
	return dec
}

func rejection(dec domain.Decision) (int, string) {
	switch dec {
	case domain.RateLimited:
		return http.StatusTooManyRequests, "Too Many Requests"
	default:
		return http.StatusForbidden, "Forbidden"
	}
}

func setBudgetHeaders(h http.Header, tracker domain.RateTracker) {
	wi, ok := tracker.(windowInfo)
	if !ok {
		return
	}
	h.Set("X-RateLimit-Limit", formatInt(wi.Threshold()))
	h.Set("X-RateLimit-Window", formatInt(retryAfterSeconds(wi.Window())))
}

func requestID(incoming string) string {
	if id := strings.TrimSpace(incoming); id != "" {
		return id
	}
	return uuid.NewString()
}

// retryAfterSeconds arredonda para cima: janela menor que 1s nunca anuncia 0.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
