package purchasebills

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MaterialCatalog supplies the default unit used to seed a new draft line.
type MaterialCatalog interface {
	DefaultUnit(ctx context.Context, materialID int64) (string, error)
}

// LineEdit carries the fields changed by a draft line edit; nil means unchanged.
type LineEdit struct {
	Quantity  *string `json:"quantity"`
	Unit      *string `json:"unit"`
	UnitPrice *string `json:"unitPrice"`
}

// DraftView is a point-in-time copy of the composer state.
type DraftView struct {
	Header         DraftHeader     `json:"header"`
	HeaderComplete bool            `json:"headerComplete"`
	Line           DraftLine       `json:"line"`
	LockState      PriceLockState  `json:"lockState"`
	LookupPending  bool            `json:"lookupPending"`
	Lines          []CartLineView  `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	Frozen         bool            `json:"frozen"`
	Revision       uint64          `json:"revision"`
}

// CartLineView is a cart entry with its display total.
type CartLineView struct {
	CartLine
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Composer owns the draft header, the draft line with its price lock and the
// cart. All state changes happen under mu; lookups run outside it and are
// applied only when their key still matches the draft.
type Composer struct {
	lookup  *PriceLookup
	catalog MaterialCatalog
	metrics *Metrics
	logger  *slog.Logger

	mu         sync.Mutex
	header     DraftHeader
	line       DraftLine
	cart       Cart
	pendingKey *LookupKey
	revision   uint64
	frozen     bool
}

// NewComposer constructs an empty composer.
func NewComposer(lookup *PriceLookup, catalog MaterialCatalog, metrics *Metrics, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{lookup: lookup, catalog: catalog, metrics: metrics, logger: logger}
}

// SetHeader replaces the header. A complete header re-evaluates the price of
// the current draft line. A supplier or date change drops a system-filled
// price first, since its quote no longer matches the line's key.
func (c *Composer) SetHeader(header DraftHeader) error {
	header.BillNumber = strings.TrimSpace(header.BillNumber)
	header.BillDate = strings.TrimSpace(header.BillDate)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrDraftFrozen
	}
	prev := c.header
	c.header = header
	if prev.SupplierID != header.SupplierID || prev.BillDate != header.BillDate {
		unlockOnMiss(&c.line)
	}
	c.touch()
	c.scheduleLookup()
	return nil
}

// SelectMaterial resets the draft line to a fresh line for the material,
// seeded with its default unit. Other cart entries are untouched.
func (c *Composer) SelectMaterial(ctx context.Context, materialID int64) error {
	if materialID <= 0 {
		return newValidationError(nil, map[string]string{"masterMaterialId": "material is required"})
	}
	c.mu.Lock()
	err := c.ensureEditable()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	unit := ""
	if c.catalog != nil {
		unit, err = c.catalog.DefaultUnit(ctx, materialID)
		if err != nil {
			return fmt.Errorf("purchasebills: resolve default unit: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureEditable(); err != nil {
		return err
	}
	c.line = resetForMaterial(materialID, strings.TrimSpace(unit))
	c.touch()
	c.scheduleLookup()
	return nil
}

// EditLine applies quantity, unit or price changes to the draft line. A
// unit change resets the price and lock; a price change is refused while the
// price is locked. Nothing is applied when the edit is refused.
func (c *Composer) EditLine(edit LineEdit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if c.line.Empty() {
		return newValidationError(nil, map[string]string{"masterMaterialId": "select a material first"})
	}

	next := c.line
	unitChanged := false
	if edit.Unit != nil {
		unit := strings.TrimSpace(*edit.Unit)
		if unit != next.Unit {
			resetForUnit(&next, unit)
			unitChanged = true
		}
	}
	if edit.Quantity != nil {
		next.Quantity = strings.TrimSpace(*edit.Quantity)
	}
	if edit.UnitPrice != nil {
		if err := editPrice(&next, strings.TrimSpace(*edit.UnitPrice)); err != nil {
			return err
		}
	}
	c.line = next
	c.touch()
	if unitChanged {
		c.scheduleLookup()
	}
	return nil
}

// UnlockPrice is the explicit Locked -> Unlocked action.
func (c *Composer) UnlockPrice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if c.line.Empty() {
		return newValidationError(nil, map[string]string{"masterMaterialId": "select a material first"})
	}
	unlockByUser(&c.line)
	c.cancelLookup()
	c.touch()
	return nil
}

// AddLine validates the draft line, appends its snapshot to the cart and
// resets the draft line. A rejected line leaves everything unchanged.
func (c *Composer) AddLine() (CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureEditable(); err != nil {
		return CartLine{}, err
	}
	line, err := ValidateLine(c.line)
	if err != nil {
		return CartLine{}, err
	}
	c.cart.Add(line)
	c.line = DraftLine{}
	c.cancelLookup()
	c.touch()
	return line, nil
}

// RemoveLine removes the cart entry at index.
func (c *Composer) RemoveLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrDraftFrozen
	}
	if err := c.cart.Remove(index); err != nil {
		return err
	}
	c.touch()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Composer) Snapshot() DraftView {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.cart.Lines()
	views := make([]CartLineView, 0, len(lines))
	for _, line := range lines {
		views = append(views, CartLineView{CartLine: line, LineTotal: line.LineTotal()})
	}
	return DraftView{
		Header:         c.header,
		HeaderComplete: c.header.Complete(),
		Line:           c.line,
		LockState:      c.line.LockState(),
		LookupPending:  c.pendingKey != nil,
		Lines:          views,
		Total:          c.cart.Total(),
		Frozen:         c.frozen,
		Revision:       c.revision,
	}
}

// applyLookup is the delivery callback of the price lookup. Results whose
// key no longer matches the draft are discarded.
func (c *Composer) applyLookup(result LookupResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := lookupKeyFor(c.header, c.line)
	if !ok || current != result.Key {
		c.metrics.lookup("stale")
		c.logger.Debug("stale price lookup discarded", slog.Any("key", result.Key))
		return
	}
	if c.pendingKey != nil && *c.pendingKey == result.Key {
		c.pendingKey = nil
	}
	c.metrics.lookup(result.Outcome())

	changed := false
	if result.Found {
		changed = lockWithQuote(&c.line, result.Quote)
	} else {
		changed = unlockOnMiss(&c.line)
	}
	if changed {
		c.touch()
	}
}

// beginSubmit checks the submission preconditions and freezes the draft.
func (c *Composer) beginSubmit() (NewPurchaseBill, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return NewPurchaseBill{}, 0, ErrSubmitInFlight
	}
	if err := validateHeader(c.header); err != nil {
		return NewPurchaseBill{}, 0, err
	}
	if c.cart.Len() == 0 {
		return NewPurchaseBill{}, 0, newValidationError(ErrCartEmpty, map[string]string{"items": "add at least one line"})
	}
	payload := NewPurchaseBill{
		BillNumber: c.header.BillNumber,
		BillDate:   c.header.BillDate,
		SupplierID: c.header.SupplierID,
		SiteID:     c.header.SiteID,
	}
	for _, line := range c.cart.lines {
		payload.Items = append(payload.Items, NewBillItem{
			MasterMaterialID: line.MasterMaterialID,
			Quantity:         line.Quantity,
			Unit:             line.Unit,
			UnitPrice:        line.UnitPrice,
		})
	}
	c.frozen = true
	return payload, c.revision, nil
}

// finishSubmit unfreezes the draft. On success the header, draft line and
// cart are cleared; on failure they are kept exactly as they were.
func (c *Composer) finishSubmit(succeeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = false
	if !succeeded {
		return
	}
	c.header = DraftHeader{}
	c.line = DraftLine{}
	c.cart.Clear()
	c.cancelLookup()
	c.touch()
}

// Close stops any pending lookup.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLookup()
}

func (c *Composer) ensureEditable() error {
	if c.frozen {
		return ErrDraftFrozen
	}
	if err := validateHeader(c.header); err != nil {
		return err
	}
	return nil
}

func (c *Composer) scheduleLookup() {
	key, ok := lookupKeyFor(c.header, c.line)
	if !ok || c.line.ManualPrice || c.lookup == nil {
		c.cancelLookup()
		return
	}
	c.pendingKey = &key
	c.lookup.Schedule(key, c.applyLookup)
}

func (c *Composer) cancelLookup() {
	c.pendingKey = nil
	if c.lookup != nil {
		c.lookup.Cancel()
	}
}

func (c *Composer) touch() {
	c.revision++
}
