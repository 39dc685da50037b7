package masterdata

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/billdesk/internal/billapi"
)

const pricesScope = "supplier-prices"

// SupplierPrices administers negotiated prices per supplier.
type SupplierPrices struct {
	client *billapi.Client
	cache  *Cache
	logger *slog.Logger
}

func newSupplierPrices(client *billapi.Client, cache *Cache, logger *slog.Logger) *SupplierPrices {
	return &SupplierPrices{client: client, cache: cache, logger: logger}
}

// ListBySupplier returns the price records of one supplier.
func (p *SupplierPrices) ListBySupplier(ctx context.Context, supplierID int64) ([]SupplierPrice, error) {
	id := strconv.FormatInt(supplierID, 10)
	load := func(ctx context.Context) ([]SupplierPrice, error) {
		prices, err := billapi.Get[[]SupplierPrice](ctx, p.client, "list supplier prices", "/supplier-prices/by-supplier/"+id, nil)
		if prices == nil && err == nil {
			prices = []SupplierPrice{}
		}
		return prices, err
	}
	key, err := p.cache.BuildKey(ctx, pricesScope, "supplier", id)
	if err != nil {
		p.logger.Warn("masterdata cache unavailable", slog.String("resource", pricesScope), slog.Any("error", err))
		return load(ctx)
	}
	var prices []SupplierPrice
	if err := p.cache.FetchJSON(ctx, key, &prices, func(ctx context.Context) (any, error) {
		return load(ctx)
	}); err != nil {
		return nil, err
	}
	return prices, nil
}

// Create adds a price record.
func (p *SupplierPrices) Create(ctx context.Context, in SupplierPriceInput) (SupplierPrice, error) {
	if err := check(in, in.extraChecks()); err != nil {
		return SupplierPrice{}, err
	}
	created, err := billapi.Send[SupplierPrice](ctx, p.client, "create supplier price", http.MethodPost, "/supplier-prices", in)
	if err != nil {
		return SupplierPrice{}, err
	}
	p.invalidate(ctx)
	return created, nil
}

// Update replaces a price record.
func (p *SupplierPrices) Update(ctx context.Context, id int64, in SupplierPriceInput) (SupplierPrice, error) {
	if err := check(in, in.extraChecks()); err != nil {
		return SupplierPrice{}, err
	}
	updated, err := billapi.Send[SupplierPrice](ctx, p.client, "update supplier price", http.MethodPut, "/supplier-prices/"+strconv.FormatInt(id, 10), in)
	if err != nil {
		return SupplierPrice{}, err
	}
	p.invalidate(ctx)
	return updated, nil
}

// Deactivate marks a price record inactive.
func (p *SupplierPrices) Deactivate(ctx context.Context, id int64) (SupplierPrice, error) {
	updated, err := billapi.Send[SupplierPrice](ctx, p.client, "deactivate supplier price", http.MethodPatch, "/supplier-prices/"+strconv.FormatInt(id, 10)+"/deactivate", nil)
	if err != nil {
		return SupplierPrice{}, err
	}
	p.invalidate(ctx)
	return updated, nil
}

func (p *SupplierPrices) invalidate(ctx context.Context) {
	if err := p.cache.Bump(ctx, pricesScope); err != nil {
		p.logger.Warn("masterdata cache bump failed", slog.String("resource", pricesScope), slog.Any("error", err))
	}
}
