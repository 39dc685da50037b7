package masterdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
)

// Ref is an {id, name} reference.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Site represents a construction site or warehouse location.
type Site struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name" validate:"required,max=255"`
	Location string `json:"location,omitempty" validate:"max=255"`
}

// Supplier represents a supplier entity
type Supplier struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name" validate:"required,max=255"`
	ContactPerson string `json:"contactPerson,omitempty" validate:"max=255"`
	ContactNumber string `json:"contactNumber,omitempty" validate:"max=50"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Address       string `json:"address,omitempty" validate:"max=1000"`
}

// ItemCategory groups master materials.
type ItemCategory struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required,max=255"`
}

// Brand represents a material brand.
type Brand struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name" validate:"required,max=255"`
	Description    string `json:"description,omitempty" validate:"max=1000"`
	BrandImagePath string `json:"brandImagePath,omitempty" validate:"max=1000"`
}

// MasterMaterial is a purchasable material with its default unit.
type MasterMaterial struct {
	ID           int64  `json:"id"`
	MaterialCode string `json:"materialCode,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DefaultUnit  string `json:"defaultUnit"`
	ItemCategory Ref    `json:"itemCategory"`
	Brand        *Ref   `json:"brand,omitempty"`
}

// MasterMaterialInput is the create/update payload of a material.
type MasterMaterialInput struct {
	Name           string `json:"name" validate:"required,max=255"`
	DefaultUnit    string `json:"defaultUnit" validate:"required,max=50"`
	ItemCategoryID int64  `json:"itemCategoryId" validate:"gt=0"`
	MaterialCode   string `json:"materialCode,omitempty" validate:"max=100"`
	Description    string `json:"description,omitempty" validate:"max=1000"`
	BrandID        *int64 `json:"brandId,omitempty" validate:"omitempty,gt=0"`
}

// MaterialRef references a material from a price record.
type MaterialRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	MaterialCode string `json:"materialCode,omitempty"`
}

// SupplierPrice is a negotiated, time-bounded price of a material.
type SupplierPrice struct {
	ID                int64           `json:"id"`
	Supplier          Ref             `json:"supplier"`
	MasterMaterial    MaterialRef     `json:"masterMaterial"`
	Price             decimal.Decimal `json:"price"`
	Unit              string          `json:"unit"`
	EffectiveFromDate string          `json:"effectiveFromDate"`
	EffectiveToDate   *string         `json:"effectiveToDate,omitempty"`
	IsActive          bool            `json:"isActive"`
}

// SupplierPriceInput is the create/update payload of a price record.
type SupplierPriceInput struct {
	SupplierID        int64           `json:"supplierId" validate:"gt=0"`
	MasterMaterialID  int64           `json:"masterMaterialId" validate:"gt=0"`
	Price             decimal.Decimal `json:"price"`
	Unit              string          `json:"unit" validate:"required,max=50"`
	EffectiveFromDate string          `json:"effectiveFromDate" validate:"required,datetime=2006-01-02"`
	EffectiveToDate   *string         `json:"effectiveToDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsActive          *bool           `json:"isActive,omitempty"`
}

// MarshalJSON sends the price as a JSON number.
func (in SupplierPriceInput) MarshalJSON() ([]byte, error) {
	type plain SupplierPriceInput
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(in), json.Number(in.Price.String())})
}

var (
	// ErrInvalidInput marks inputs rejected before any request is made.
	ErrInvalidInput = fmt.Errorf("masterdata: invalid input: %w", httpx.ErrValidation)
	// ErrNotFound indicates an unknown master-data record.
	ErrNotFound = fmt.Errorf("masterdata: not found: %w", httpx.ErrNotFound)
)

// ValidationError names the invalid fields of an input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrInvalidInput.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// FieldErrors exposes the field map to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

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

// check validates a struct input and reports failures as *ValidationError.
func check(input any, extra map[string]string) error {
	fields := map[string]string{}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Error()
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (in SupplierPriceInput) extraChecks() map[string]string {
	extra := map[string]string{}
	if in.Price.IsNegative() {
		extra["price"] = "price must not be negative"
	}
	if in.EffectiveToDate != nil && *in.EffectiveToDate != "" && *in.EffectiveToDate < in.EffectiveFromDate {
		extra["effectiveToDate"] = "must not be before effectiveFromDate"
	}
	return extra
}
