package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/billdesk/internal/masterdata"
	"github.com/odyssey-erp/billdesk/internal/observability"
	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/purchasebills"
	"github.com/odyssey-erp/billdesk/internal/shared"
	"github.com/odyssey-erp/billdesk/jobs"
	"github.com/odyssey-erp/billdesk/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	PurchaseBillHandler *purchasebills.Handler
	MasterDataHandler   *masterdata.Handler
	ReportHandler       *report.Handler
	JobHandler          *jobs.Handler
}

type sessionView struct {
	User      string `json:"user,omitempty"`
	CSRFToken string `json:"csrfToken"`
}

// NewRouter constructs the chi.Router with billdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
			if err != nil {
				params.Logger.Error("issue csrf token", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, sessionView{User: sess.User(), CSRFToken: token})
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			params.SessionManager.Destroy(shared.SessionFromContext(r.Context()))
			w.WriteHeader(http.StatusNoContent)
		})
	})

	if params.PurchaseBillHandler != nil {
		r.Route("/purchase-bills", params.PurchaseBillHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
