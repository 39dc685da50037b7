package purchasebills

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/shared"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeAPI is an in-memory stand-in for the remote purchase-bill API. Hooks
// run before the default behaviour and may block to hold a request in flight.
type fakeAPI struct {
	mu sync.Mutex

	prices      map[PriceQuery]PriceQuote
	priceErr    error
	priceCalls  []PriceQuery
	priceHook   func(PriceQuery)
	createFn    func(NewPurchaseBill, string) (PurchaseBill, error)
	createKeys  []string
	listFn      func() ([]PurchaseBill, error)
	getFn       func(int64) (PurchaseBill, error)
	lineFn      func(lineID int64, received bool) (PurchaseBill, error)
	hardcopyFn  func(billID int64, received, handed bool) (PurchaseBill, error)
	hardcopyArg [][2]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{prices: map[PriceQuery]PriceQuote{}}
}

func (f *fakeAPI) setPrice(q PriceQuery, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[q] = PriceQuote{Price: decimal.RequireFromString(price), Unit: q.Unit}
}

func (f *fakeAPI) lookups() []PriceQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PriceQuery(nil), f.priceCalls...)
}

func (f *fakeAPI) ResolveActivePrice(ctx context.Context, q PriceQuery) (PriceQuote, error) {
	f.mu.Lock()
	f.priceCalls = append(f.priceCalls, q)
	hook := f.priceHook
	f.mu.Unlock()
	if hook != nil {
		hook(q)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return PriceQuote{}, f.priceErr
	}
	quote, ok := f.prices[q]
	if !ok {
		return PriceQuote{}, fmt.Errorf("fake: %w", ErrNoActivePrice)
	}
	return quote, nil
}

func (f *fakeAPI) CreatePurchaseBill(ctx context.Context, bill NewPurchaseBill, key string) (PurchaseBill, error) {
	f.mu.Lock()
	f.createKeys = append(f.createKeys, key)
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(bill, key)
	}
	return createdBill(1, bill), nil
}

func (f *fakeAPI) ListPurchaseBills(ctx context.Context) ([]PurchaseBill, error) {
	if f.listFn != nil {
		return f.listFn()
	}
	return nil, nil
}

func (f *fakeAPI) GetPurchaseBill(ctx context.Context, id int64) (PurchaseBill, error) {
	if f.getFn != nil {
		return f.getFn(id)
	}
	return PurchaseBill{}, fmt.Errorf("fake: bill %d: %w", id, httpx.ErrNotFound)
}

func (f *fakeAPI) UpdateLineReceipt(ctx context.Context, lineID int64, received bool, remarks *string) (PurchaseBill, error) {
	return f.lineFn(lineID, received)
}

func (f *fakeAPI) UpdateHardcopy(ctx context.Context, billID int64, received, handed bool) (PurchaseBill, error) {
	f.mu.Lock()
	f.hardcopyArg = append(f.hardcopyArg, [2]bool{received, handed})
	f.mu.Unlock()
	return f.hardcopyFn(billID, received, handed)
}

// createdBill is what the server would return for a creation request.
func createdBill(id int64, in NewPurchaseBill) PurchaseBill {
	bill := PurchaseBill{
		ID:               id,
		BillNumber:       in.BillNumber,
		BillDate:         in.BillDate,
		Supplier:         Ref{ID: in.SupplierID},
		Site:             Ref{ID: in.SiteID},
		OverallGRNStatus: GRNStatusNone,
	}
	total := decimal.Zero
	for i, item := range in.Items {
		lineTotal := item.Quantity.Mul(item.UnitPrice)
		total = total.Add(lineTotal)
		bill.BillItems = append(bill.BillItems, BillLine{
			ID:               id*100 + int64(i) + 1,
			MasterMaterialID: item.MasterMaterialID,
			Quantity:         item.Quantity,
			Unit:             item.Unit,
			UnitPrice:        item.UnitPrice,
			ItemTotalPrice:   lineTotal,
		})
	}
	bill.TotalAmount = total
	return bill
}

// sampleBill builds a bill with two lines updated at the given offset.
func sampleBill(id int64, updated time.Duration) PurchaseBill {
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	return PurchaseBill{
		ID:               id,
		BillNumber:       fmt.Sprintf("B-%d", id),
		BillDate:         "2024-01-10",
		OverallGRNStatus: GRNStatusNone,
		BillItems: []BillLine{
			{ID: id*100 + 1, MasterMaterialID: 9, Quantity: decimal.NewFromInt(10), Unit: "kg"},
			{ID: id*100 + 2, MasterMaterialID: 10, Quantity: decimal.NewFromInt(1), Unit: "pcs"},
		},
		UpdatedAt: Timestamp{Time: base.Add(updated)},
	}
}

type fakeCatalog map[int64]string

func (c fakeCatalog) DefaultUnit(ctx context.Context, id int64) (string, error) {
	unit, ok := c[id]
	if !ok {
		return "", fmt.Errorf("material %d: %w", id, httpx.ErrNotFound)
	}
	return unit, nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

// userFacingError mimics a transport error carrying server text.
type userFacingError struct {
	msg    string
	fields map[string]string
}

func (e *userFacingError) Error() string                  { return "remote: " + e.msg }
func (e *userFacingError) UserMessage() string            { return e.msg }
func (e *userFacingError) FieldErrors() map[string]string { return e.fields }
func (e *userFacingError) Unwrap() error                  { return httpx.ErrUpstream }

func strPtr(s string) *string { return &s }

var completeHeader = DraftHeader{BillNumber: "B-100", BillDate: "2024-01-10", SupplierID: 5, SiteID: 2}

var kgQuery = PriceQuery{SupplierID: 5, MasterMaterialID: 9, Unit: "kg", Date: "2024-01-10"}

func newTestComposer(api *fakeAPI) *Composer {
	lookup := NewPriceLookup(api, 20*time.Millisecond, time.Second, discardLogger)
	return NewComposer(lookup, fakeCatalog{9: "kg", 10: "pcs"}, nil, discardLogger)
}
