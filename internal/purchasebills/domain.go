package purchasebills

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
)

// LoadStatus mirrors the request lifecycle of a store slot or update channel.
type LoadStatus string

const (
	StatusIdle      LoadStatus = "idle"
	StatusLoading   LoadStatus = "loading"
	StatusSucceeded LoadStatus = "succeeded"
	StatusFailed    LoadStatus = "failed"
)

// Overall GRN statuses as reported by the API. The value is owned by the
// server; billdesk only displays it.
const (
	GRNStatusNone    = "NONE"
	GRNStatusPartial = "PARTIAL"
	GRNStatusFull    = "FULL"
)

// Ref is an {id, name} reference embedded in a bill.
type Ref struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// PurchaseBill is the server-owned bill aggregate.
type PurchaseBill struct {
	ID                             int64           `json:"id"`
	BillNumber                     string          `json:"billNumber"`
	BillDate                       string          `json:"billDate"`
	Supplier                       Ref             `json:"supplier"`
	Site                           Ref             `json:"site"`
	BillImagePath                  string          `json:"billImagePath,omitempty"`
	TotalAmount                    decimal.Decimal `json:"totalAmount"`
	OverallGRNStatus               string          `json:"overallGrnStatus"`
	GRNHardcopyReceivedByPurchaser bool            `json:"grnHardcopyReceivedByPurchaser"`
	GRNHardcopyHandedToAccountant  bool            `json:"grnHardcopyHandedToAccountant"`
	BillItems                      []BillLine      `json:"billItems"`
	CreatedAt                      Timestamp       `json:"createdAt"`
	UpdatedAt                      Timestamp       `json:"updatedAt"`
}

// BillLine is a line of a fetched bill. ItemTotalPrice is computed by the server.
type BillLine struct {
	ID                 int64           `json:"id"`
	MasterMaterialID   int64           `json:"masterMaterialId"`
	MasterMaterialCode string          `json:"masterMaterialCode,omitempty"`
	MasterMaterialName string          `json:"masterMaterialName"`
	ItemCategoryName   string          `json:"itemCategoryName"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	ItemTotalPrice     decimal.Decimal `json:"itemTotalPrice"`
	GRNReceivedForItem bool            `json:"grnReceivedForItem"`
	Remarks            string          `json:"remarks,omitempty"`
}

// Clone returns a deep copy so callers never share the line slice with the store.
func (b PurchaseBill) Clone() PurchaseBill {
	out := b
	if b.BillItems != nil {
		out.BillItems = append([]BillLine(nil), b.BillItems...)
	}
	return out
}

// Line returns the line with the given id.
func (b PurchaseBill) Line(lineID int64) (BillLine, bool) {
	for _, line := range b.BillItems {
		if line.ID == lineID {
			return line, true
		}
	}
	return BillLine{}, false
}

// PriceQuery identifies the active price to resolve.
type PriceQuery struct {
	SupplierID       int64
	MasterMaterialID int64
	Unit             string
	Date             string
}

// PriceQuote is the active price returned by a lookup.
type PriceQuote struct {
	ID    int64           `json:"id,omitempty"`
	Price decimal.Decimal `json:"price"`
	Unit  string          `json:"unit"`
}

// NewPurchaseBill is the creation payload: header plus ordered lines.
type NewPurchaseBill struct {
	BillNumber string        `json:"billNumber"`
	BillDate   string        `json:"billDate"`
	SupplierID int64         `json:"supplierId"`
	SiteID     int64         `json:"siteId"`
	Items      []NewBillItem `json:"items"`
}

// NewBillItem is one line of the creation payload.
type NewBillItem struct {
	MasterMaterialID int64           `json:"masterMaterialId"`
	Quantity         decimal.Decimal `json:"quantity"`
	Unit             string          `json:"unit"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
}

// MarshalJSON sends quantity and unit price as JSON numbers, the form the API
// expects.
func (i NewBillItem) MarshalJSON() ([]byte, error) {
	type plain NewBillItem
	return json.Marshal(struct {
		plain
		Quantity  json.Number `json:"quantity"`
		UnitPrice json.Number `json:"unitPrice"`
	}{plain(i), json.Number(i.Quantity.String()), json.Number(i.UnitPrice.String())})
}

// Timestamp decodes the API's timestamps, which may come without a zone offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("purchasebills: unsupported timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

var (
	// ErrValidation marks local, pre-request validation failures.
	ErrValidation = fmt.Errorf("purchasebills: invalid input: %w", httpx.ErrValidation)
	// ErrNoActivePrice is the explicit "no active price" outcome of a lookup.
	ErrNoActivePrice = errors.New("purchasebills: no active price")
	// ErrPriceLocked is returned when editing a system-supplied price.
	ErrPriceLocked = fmt.Errorf("purchasebills: price is locked: %w", httpx.ErrConflict)
	// ErrDraftFrozen is returned when the draft is edited during submission.
	ErrDraftFrozen = fmt.Errorf("purchasebills: draft is being submitted: %w", httpx.ErrConflict)
	// ErrSubmitInFlight prevents a double submit.
	ErrSubmitInFlight = fmt.Errorf("purchasebills: submission already in progress: %w", httpx.ErrConflict)
	// ErrUpdateInFlight refuses a GRN toggle while the same target is updating.
	ErrUpdateInFlight = fmt.Errorf("purchasebills: update already in progress: %w", httpx.ErrConflict)
	// ErrHeaderIncomplete blocks line entry and submission.
	ErrHeaderIncomplete = errors.New("purchasebills: bill header incomplete")
	// ErrCartEmpty blocks submission of a bill without lines.
	ErrCartEmpty = errors.New("purchasebills: cart is empty")
	// ErrBillNotFound indicates a bill unknown to the store.
	ErrBillNotFound = fmt.Errorf("purchasebills: bill not found: %w", httpx.ErrNotFound)
	// ErrLineNotFound indicates a bill line or cart index that does not exist.
	ErrLineNotFound = fmt.Errorf("purchasebills: line not found: %w", httpx.ErrNotFound)
	// ErrNoSelectedBill is returned by operations that need a selected bill.
	ErrNoSelectedBill = fmt.Errorf("purchasebills: no bill selected: %w", httpx.ErrNotFound)
)

// ValidationError names the missing or invalid fields of a local check.
type ValidationError struct {
	Fields map[string]string
	Cause  error
}

// Unwrap exposes the domain cause, if any.
func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return ErrValidation.Error() + " (" + strings.Join(parts, "; ") + ")"
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == httpx.ErrValidation
}

// FieldErrors exposes the field map to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string {
	if e == nil {
		return nil
	}
	return e.Fields
}

func newValidationError(cause error, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields, Cause: cause}
}

// UserMessage returns server-provided text when the error carries it and the
// fallback otherwise.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var carrier interface{ UserMessage() string }
	if errors.As(err, &carrier) {
		if msg := strings.TrimSpace(carrier.UserMessage()); msg != "" {
			return msg
		}
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return fallback
}
