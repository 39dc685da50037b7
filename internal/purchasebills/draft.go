package purchasebills

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DraftHeader is the bill header being composed.
type DraftHeader struct {
	BillNumber string `json:"billNumber" validate:"required,max=64"`
	BillDate   string `json:"billDate" validate:"required,datetime=2006-01-02"`
	SupplierID int64  `json:"supplierId" validate:"gt=0"`
	SiteID     int64  `json:"siteId" validate:"gt=0"`
}

// Complete reports whether every header field is populated. Line entry and
// price lookups are blocked until it is.
func (h DraftHeader) Complete() bool {
	return validateHeader(h) == nil
}

func validateHeader(h DraftHeader) error {
	h.BillNumber = strings.TrimSpace(h.BillNumber)
	if err := validate.Struct(h); err != nil {
		return newValidationError(ErrHeaderIncomplete, fieldErrors(err))
	}
	return nil
}

// DraftLine is the line currently being edited. Quantity and UnitPrice keep
// the raw user input so that an invalid entry can be reported by addLine
// without losing what was typed.
type DraftLine struct {
	MasterMaterialID int64  `json:"masterMaterialId"`
	Unit             string `json:"unit"`
	Quantity         string `json:"quantity"`
	UnitPrice        string `json:"unitPrice"`
	PriceLocked      bool   `json:"priceLocked"`
	ManualPrice      bool   `json:"manualPrice"`
}

// Empty reports whether no material has been selected yet.
func (l DraftLine) Empty() bool {
	return l.MasterMaterialID == 0
}

// CartLine is an immutable snapshot of a validated draft line.
type CartLine struct {
	MasterMaterialID int64           `json:"masterMaterialId"`
	Unit             string          `json:"unit"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	PriceLocked      bool            `json:"priceLocked"`
}

// LineTotal is quantity * unitPrice, for display only.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// ValidateLine checks a draft line and returns its cart snapshot. The error
// is a *ValidationError naming every invalid field.
func ValidateLine(draft DraftLine) (CartLine, error) {
	fields := map[string]string{}
	if draft.MasterMaterialID <= 0 {
		fields["masterMaterialId"] = "material is required"
	}
	unit := strings.TrimSpace(draft.Unit)
	if unit == "" {
		fields["unit"] = "unit is required"
	}
	qty, err := parseDecimal(draft.Quantity)
	switch {
	case err != nil:
		fields["quantity"] = "quantity must be a number"
	case !qty.IsPositive():
		fields["quantity"] = "quantity must be greater than zero"
	}
	price, err := parseDecimal(draft.UnitPrice)
	switch {
	case err != nil:
		fields["unitPrice"] = "unit price must be a number"
	case price.IsNegative():
		fields["unitPrice"] = "unit price must not be negative"
	}
	if verr := newValidationError(nil, fields); verr != nil {
		return CartLine{}, verr
	}
	return CartLine{
		MasterMaterialID: draft.MasterMaterialID,
		Unit:             unit,
		Quantity:         qty,
		UnitPrice:        price,
		PriceLocked:      draft.PriceLocked,
	}, nil
}

var errBlankNumber = errors.New("blank number")

func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errBlankNumber
	}
	return decimal.NewFromString(raw)
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = describeTag(fieldErr)
	}
	return fields
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "gt":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}

// LookupKey tags a price lookup with the draft state that triggered it.
type LookupKey struct {
	SupplierID       int64
	MasterMaterialID int64
	Unit             string
	Date             string
}

// Query converts the key into the API query.
func (k LookupKey) Query() PriceQuery {
	return PriceQuery{
		SupplierID:       k.SupplierID,
		MasterMaterialID: k.MasterMaterialID,
		Unit:             k.Unit,
		Date:             k.Date,
	}
}

// lookupKeyFor returns the key for the current draft and whether a lookup
// may run at all.
func lookupKeyFor(header DraftHeader, line DraftLine) (LookupKey, bool) {
	if !header.Complete() || line.Empty() || strings.TrimSpace(line.Unit) == "" {
		return LookupKey{}, false
	}
	return LookupKey{
		SupplierID:       header.SupplierID,
		MasterMaterialID: line.MasterMaterialID,
		Unit:             strings.TrimSpace(line.Unit),
		Date:             header.BillDate,
	}, true
}
