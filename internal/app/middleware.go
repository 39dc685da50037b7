package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/billdesk/internal/observability"
	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/shared"
)

// ForwardedUserHeader carries the user id set by the authenticating proxy.
const ForwardedUserHeader = "X-Forwarded-User"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	logger        *slog.Logger
	ctx           context.Context
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("failed to commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// MiddlewareStack installs the billdesk middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Config.IsProduction(),
	})

	sessionMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
				return
			}
			if user := r.Header.Get(ForwardedUserHeader); user != "" && user != sess.User() {
				sess.SetUser(user)
			}
			ctx = shared.ContextWithSession(ctx, sess)
			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				logger:         cfg.Logger,
				ctx:            context.WithoutCancel(ctx),
			}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}

	csrfMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if err := cfg.CSRFManager.VerifyToken(r.Context(), sess, r.Header.Get(shared.CSRFHeader)); err != nil {
				cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing or invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	limit := 600
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		limit = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		sessionMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		csrfMiddleware,
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}
