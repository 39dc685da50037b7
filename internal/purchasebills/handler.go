package purchasebills

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/shared"
)

// BillPrinter renders a bill printout as PDF.
type BillPrinter interface {
	PrintBill(ctx context.Context, bill PurchaseBill) ([]byte, error)
}

// Handler exposes the purchase bill workflows as JSON endpoints. State is
// kept per session.
type Handler struct {
	logger     *slog.Logger
	workspaces *Workspaces
	printer    BillPrinter
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, workspaces *Workspaces, printer BillPrinter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, workspaces: workspaces, printer: printer}
}

// MountRoutes registers purchase bill routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/draft", func(r chi.Router) {
		r.Get("/", h.getDraft)
		r.Put("/header", h.putHeader)
		r.Post("/line/material", h.selectMaterial)
		r.Patch("/line", h.editLine)
		r.Post("/line/unlock", h.unlockPrice)
		r.Post("/lines", h.addLine)
		r.Delete("/lines/{index}", h.removeLine)
		r.Post("/submit", h.submit)
		r.Get("/submission", h.submissionStatus)
		r.Post("/submission/reset", h.resetSubmission)
	})

	r.Get("/", h.listBills)
	r.Get("/state", h.storeState)
	r.Delete("/selected", h.clearSelected)
	r.Get("/grn/status", h.grnStatus)
	r.Post("/grn/{channel}/reset", h.resetChannel)
	r.Patch("/items/{lineID}/grn", h.updateLineReceipt)
	r.Get("/{id}", h.getBill)
	r.Patch("/{id}/grn-hardcopy", h.toggleHardcopy)
	r.Get("/{id}/print", h.printBill)
}

func (h *Handler) workspace(r *http.Request) (*Workspace, string, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.ID == "" {
		return nil, "", httpx.ErrUnauthorized
	}
	return h.workspaces.Get(sess.ID), sess.User(), nil
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) putHeader(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var header DraftHeader
	if err := httpx.DecodeJSON(r, &header); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := ws.Composer.SetHeader(header); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) selectMaterial(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body struct {
		MasterMaterialID int64 `json:"masterMaterialId"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := ws.Composer.SelectMaterial(r.Context(), body.MasterMaterialID); err != nil {
		h.respondError(w, "select material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) editLine(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var edit LineEdit
	if err := httpx.DecodeJSON(r, &edit); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := ws.Composer.EditLine(edit); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) unlockPrice(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := ws.Composer.UnlockPrice(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := ws.Composer.AddLine(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ws.Composer.Snapshot())
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line index")
		return
	}
	if err := ws.Composer.RemoveLine(index); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Composer.Snapshot())
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ws, actor, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bill, err := ws.Submission.Submit(r.Context(), actor)
	if err != nil {
		h.respondError(w, "submit purchase bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) submissionStatus(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Submission.Status())
}

func (h *Handler) resetSubmission(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ws.Submission.Reset()
	httpx.JSON(w, http.StatusOK, ws.Submission.Status())
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("refresh") == "1" || ws.Store.ListStatus() == StatusIdle {
		if _, err := ws.Store.FetchList(r.Context()); err != nil {
			h.respondError(w, "list purchase bills", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, ws.Store.View().List)
}

func (h *Handler) storeState(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.Store.View())
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	bill, err := ws.Store.FetchByID(r.Context(), id)
	if err != nil {
		h.respondError(w, "get purchase bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) clearSelected(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ws.Store.ClearSelected()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateLineReceipt(w http.ResponseWriter, r *http.Request) {
	ws, actor, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, ok := h.idParam(w, r, "lineID")
	if !ok {
		return
	}
	var body struct {
		Received *bool   `json:"received"`
		Remarks  *string `json:"remarks"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if body.Received == nil {
		httpx.RespondError(w, newValidationError(nil, map[string]string{"received": "required"}))
		return
	}
	bill, err := ws.GRN.UpdateLineReceipt(r.Context(), actor, lineID, *body.Received, body.Remarks)
	if err != nil {
		h.respondError(w, "update line receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) toggleHardcopy(w http.ResponseWriter, r *http.Request) {
	ws, actor, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	billID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Field string `json:"field"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	bill, err := ws.GRN.ToggleHardcopy(r.Context(), actor, billID, body.Field)
	if err != nil {
		h.respondError(w, "update hardcopy status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) grnStatus(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ws.GRN.Status())
}

func (h *Handler) resetChannel(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	switch Channel(chi.URLParam(r, "channel")) {
	case ChannelLine:
		ws.GRN.ResetLineChannel()
	case ChannelHeader:
		ws.GRN.ResetHeaderChannel()
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown channel")
		return
	}
	httpx.JSON(w, http.StatusOK, ws.GRN.Status())
}

func (h *Handler) printBill(w http.ResponseWriter, r *http.Request) {
	ws, _, err := h.workspace(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.printer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "printing is not configured")
		return
	}
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	bill, found := ws.Store.Bill(id)
	if !found {
		httpx.RespondError(w, ErrBillNotFound)
		return
	}
	pdf, err := h.printer.PrintBill(r.Context(), bill)
	if err != nil {
		h.logger.Error("print purchase bill", slog.Int64("bill_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", "failed to render printout")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="purchase-bill-`+strconv.FormatInt(bill.ID, 10)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

// respondError logs unexpected failures before mapping them.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrConflict) && !errors.Is(err, httpx.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
