package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/billdesk/internal/purchasebills"
)

//go:embed templates/*.html
var templates embed.FS

// BillPrinter renders purchase bill printouts through Gotenberg.
type BillPrinter struct {
	client *Client
	tmpl   *template.Template
	now    func() time.Time
}

// NewBillPrinter parses the printout template. Amounts are formatted for lang.
func NewBillPrinter(client *Client, lang language.Tag) (*BillPrinter, error) {
	printer := message.NewPrinter(lang)
	caser := cases.Title(lang)
	funcs := template.FuncMap{
		"amount": func(d decimal.Decimal) string {
			// rounded before the float conversion so the printed digits are exact
			return printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
		},
		"quantity": func(d decimal.Decimal) string {
			return printer.Sprint(number.Decimal(d.Round(3).InexactFloat64(), number.MaxFractionDigits(3)))
		},
		"status": func(s string) string {
			if s == "" {
				return "-"
			}
			return caser.String(strings.ToLower(s))
		},
		"yesno": func(b bool) string {
			if b {
				return "Yes"
			}
			return "No"
		},
		"inc": func(i int) int { return i + 1 },
	}
	tmpl, err := template.New("purchase_bill.html").Funcs(funcs).ParseFS(templates, "templates/purchase_bill.html")
	if err != nil {
		return nil, fmt.Errorf("report: parse template: %w", err)
	}
	return &BillPrinter{client: client, tmpl: tmpl, now: time.Now}, nil
}

// RenderBillHTML renders the printout as HTML.
func (p *BillPrinter) RenderBillHTML(bill purchasebills.PurchaseBill) (string, error) {
	var buf bytes.Buffer
	data := map[string]any{
		"Bill":      bill,
		"PrintedAt": p.now().Format("2006-01-02 15:04"),
	}
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: render bill: %w", err)
	}
	return buf.String(), nil
}

// PrintBill renders the printout and converts it to PDF.
func (p *BillPrinter) PrintBill(ctx context.Context, bill purchasebills.PurchaseBill) ([]byte, error) {
	html, err := p.RenderBillHTML(bill)
	if err != nil {
		return nil, err
	}
	return p.client.RenderHTML(ctx, html)
}

// Handler manages report endpoints.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
