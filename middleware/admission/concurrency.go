package admission

import (
	"log/slog"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/gin-gonic/gin"
)

type ConcurrencyOptions struct {
	// Max de requisições simultâneas. Zero ou negativo desativa o limite.
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão de tamanho Max.
	Pool domain.SlotPool
	// KeyFn identifica o cliente nos logs de rejeição. Padrão: DefaultKeyFunc("", false).
	KeyFn  KeyFunc
	Logger *slog.Logger
}

// limiter monta o serviço; ok=false quando o limite está desativado.
func (o *ConcurrencyOptions) limiter() (application.ConcurrencyService, bool) {
	if o.Max <= 0 && o.Pool == nil {
		return application.ConcurrencyService{}, false
	}
	if o.RejectStatus == 0 {
		o.RejectStatus = http.StatusServiceUnavailable
	}
	if o.Pool == nil {
		o.Pool = infra.NewChanPool(o.Max)
	}
	if o.KeyFn == nil {
		o.KeyFn = DefaultKeyFunc("", false)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return application.ConcurrencyService{Pool: o.Pool, AcquireTimeout: o.AcquireTimeout}, true
}

func (o *ConcurrencyOptions) logRejected(r *http.Request, key string) {
	args := []any{
		"decision", "overloaded",
		"client", key,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if p, ok := o.Pool.(interface{ InFlight() int }); ok {
		args = append(args, "in_flight", p.InFlight())
	}
	o.Logger.Warn("request rejected", args...)
}

// ConcurrencyMiddleware limita quantas requisições são atendidas ao mesmo tempo.
// Quem não consegue vaga a tempo recebe RejectStatus (503 por padrão).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	svc, enabled := opts.limiter()
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.logRejected(r, opts.KeyFn(r))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

// GinConcurrencyMiddleware é a versão gin de ConcurrencyMiddleware; o cliente dos logs é c.ClientIP().
func GinConcurrencyMiddleware(opts ConcurrencyOptions) gin.HandlerFunc {
	svc, enabled := opts.limiter()
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		release, ok := svc.Acquire(c.Request.Context())
		if !ok {
			opts.logRejected(c.Request, c.ClientIP())
			c.String(opts.RejectStatus, http.StatusText(opts.RejectStatus))
			c.Abort()
			return
		}
		defer release()

		c.Next()
	}
}
