package masterdata

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
)

// Handler exposes the directory as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	directory *Directory
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, directory *Directory) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, directory: directory}
}

// MountRoutes registers master-data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	mountResource(r, h, h.directory.Sites)
	mountResource(r, h, h.directory.Suppliers)
	mountResource(r, h, h.directory.ItemCategories)
	mountResource(r, h, h.directory.Brands)
	mountResource(r, h, h.directory.Materials)

	r.Route("/supplier-prices", func(r chi.Router) {
		r.Get("/by-supplier/{supplierID}", h.listPrices)
		r.Post("/", h.createPrice)
		r.Put("/{id}", h.updatePrice)
		r.Patch("/{id}/deactivate", h.deactivatePrice)
	})
}

func mountResource[T any, In any](r chi.Router, h *Handler, res *Resource[T, In]) {
	r.Route("/"+res.Name(), func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			items, err := res.List(r.Context())
			if err != nil {
				h.fail(w, "list "+res.Name(), err)
				return
			}
			httpx.JSON(w, http.StatusOK, items)
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in In
			if err := httpx.DecodeJSON(r, &in); err != nil {
				httpx.RespondError(w, err)
				return
			}
			created, err := res.Create(r.Context(), in)
			if err != nil {
				h.fail(w, "create "+res.Name(), err)
				return
			}
			httpx.JSON(w, http.StatusCreated, created)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := idParam(w, r, "id")
			if !ok {
				return
			}
			var in In
			if err := httpx.DecodeJSON(r, &in); err != nil {
				httpx.RespondError(w, err)
				return
			}
			updated, err := res.Update(r.Context(), id, in)
			if err != nil {
				h.fail(w, "update "+res.Name(), err)
				return
			}
			httpx.JSON(w, http.StatusOK, updated)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := idParam(w, r, "id")
			if !ok {
				return
			}
			if err := res.Delete(r.Context(), id); err != nil {
				h.fail(w, "delete "+res.Name(), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

func (h *Handler) listPrices(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := idParam(w, r, "supplierID")
	if !ok {
		return
	}
	prices, err := h.directory.Prices.ListBySupplier(r.Context(), supplierID)
	if err != nil {
		h.fail(w, "list supplier prices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, prices)
}

func (h *Handler) createPrice(w http.ResponseWriter, r *http.Request) {
	var in SupplierPriceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.directory.Prices.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create supplier price", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in SupplierPriceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.directory.Prices.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update supplier price", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deactivatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.directory.Prices.Deactivate(r.Context(), id)
	if err != nil {
		h.fail(w, "deactivate supplier price", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, context.Canceled) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
