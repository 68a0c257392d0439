package admission

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinMiddleware é a versão gin de Middleware.
//
// Sem KeyFn nem KeyHeader, a chave é c.ClientIP(), que respeita os trusted proxies
// configurados no engine.
func GinMiddleware(opts Options) gin.HandlerFunc {
	useClientIP := opts.KeyFn == nil && opts.KeyHeader == ""
	opts.setDefaults()

	return func(c *gin.Context) {
		reqID := requestID(c.GetHeader(requestIDHeader))
		c.Header(requestIDHeader, reqID)
		c.Set("request_id", reqID)

		var key string
		if useClientIP {
			key = c.ClientIP()
		} else {
			key = opts.KeyFn(c.Request)
		}
		if opts.AddHeaders {
			setBudgetHeaders(c.Writer.Header(), opts.Pipeline.Tracker)
		}

		dec := opts.evaluate(c.Request.Context(), key, c.Request.UserAgent(), c.Request.Method, c.Request.URL.Path)
		c.Set("admission_decision", dec.String())
		if dec.Allowed() {
			c.Next()
			return
		}

		opts.Logger.Info("request rejected",
			"request_id", reqID,
			"decision", dec.String(),
			"client", key,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		status, body := rejection(dec)
		if status == http.StatusTooManyRequests {
			c.Header("Retry-After", formatInt(retryAfterSeconds(opts.RetryAfter)))
		}
		c.String(status, body)
		c.Abort()
	}
}
