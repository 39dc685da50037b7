// Package masterdata is the directory of sites, suppliers, item categories,
// brands, master materials and supplier prices kept by the purchase-bill API.
package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/billdesk/internal/billapi"
)

// Resource is one CRUD collection of the API. Lists are cached; every
// successful mutation bumps the collection's cache version.
type Resource[T any, In any] struct {
	name   string
	path   string
	client *billapi.Client
	cache  *Cache
	logger *slog.Logger
}

func newResource[T any, In any](name, path string, client *billapi.Client, cache *Cache, logger *slog.Logger) *Resource[T, In] {
	return &Resource[T, In]{name: name, path: path, client: client, cache: cache, logger: logger}
}

// Name is the resource's route and cache segment.
func (r *Resource[T, In]) Name() string { return r.name }

// List returns every record, served from cache when possible.
func (r *Resource[T, In]) List(ctx context.Context) ([]T, error) {
	key, err := r.cache.BuildKey(ctx, r.name, "list")
	if err != nil {
		r.logger.Warn("masterdata cache unavailable", slog.String("resource", r.name), slog.Any("error", err))
		return r.load(ctx)
	}
	var items []T
	if err := r.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (any, error) {
		return r.load(ctx)
	}); err != nil {
		return nil, err
	}
	return items, nil
}

// Refresh reloads the list from the API and overwrites the cached copy.
func (r *Resource[T, In]) Refresh(ctx context.Context) (int, error) {
	items, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	key, err := r.cache.BuildKey(ctx, r.name, "list")
	if err != nil {
		return 0, err
	}
	if err := r.cache.Store(ctx, key, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Create validates in and creates a record.
func (r *Resource[T, In]) Create(ctx context.Context, in In) (T, error) {
	var zero T
	if err := check(in, nil); err != nil {
		return zero, err
	}
	created, err := billapi.Send[T](ctx, r.client, "create "+r.name, http.MethodPost, r.path, in)
	if err != nil {
		return zero, err
	}
	r.invalidate(ctx)
	return created, nil
}

// Update validates in and replaces the record.
func (r *Resource[T, In]) Update(ctx context.Context, id int64, in In) (T, error) {
	var zero T
	if err := check(in, nil); err != nil {
		return zero, err
	}
	updated, err := billapi.Send[T](ctx, r.client, "update "+r.name, http.MethodPut, r.itemPath(id), in)
	if err != nil {
		return zero, err
	}
	r.invalidate(ctx)
	return updated, nil
}

// Delete removes the record.
func (r *Resource[T, In]) Delete(ctx context.Context, id int64) error {
	if err := billapi.Delete(ctx, r.client, "delete "+r.name, r.itemPath(id)); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *Resource[T, In]) load(ctx context.Context) ([]T, error) {
	items, err := billapi.Get[[]T](ctx, r.client, "list "+r.name, r.path, nil)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *Resource[T, In]) invalidate(ctx context.Context) {
	if err := r.cache.Bump(ctx, r.name); err != nil {
		r.logger.Warn("masterdata cache bump failed", slog.String("resource", r.name), slog.Any("error", err))
	}
}

func (r *Resource[T, In]) itemPath(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

type refresher interface {
	Name() string
	Refresh(ctx context.Context) (int, error)
}

// Directory groups the master-data collections.
type Directory struct {
	Sites          *Resource[Site, Site]
	Suppliers      *Resource[Supplier, Supplier]
	ItemCategories *Resource[ItemCategory, ItemCategory]
	Brands         *Resource[Brand, Brand]
	Materials      *Resource[MasterMaterial, MasterMaterialInput]
	Prices         *SupplierPrices

	logger *slog.Logger
}

// NewDirectory wires every collection against the API client.
func NewDirectory(client *billapi.Client, cache *Cache, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		Sites:          newResource[Site, Site]("sites", "/sites", client, cache, logger),
		Suppliers:      newResource[Supplier, Supplier]("suppliers", "/suppliers", client, cache, logger),
		ItemCategories: newResource[ItemCategory, ItemCategory]("item-categories", "/item-categories", client, cache, logger),
		Brands:         newResource[Brand, Brand]("brands", "/brands", client, cache, logger),
		Materials:      newResource[MasterMaterial, MasterMaterialInput]("master-materials", "/master-materials", client, cache, logger),
		Prices:         newSupplierPrices(client, cache, logger),
		logger:         logger,
	}
}

// DefaultUnit returns the default unit of a material.
func (d *Directory) DefaultUnit(ctx context.Context, materialID int64) (string, error) {
	materials, err := d.Materials.List(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range materials {
		if m.ID == materialID {
			return m.DefaultUnit, nil
		}
	}
	return "", fmt.Errorf("material %d: %w", materialID, ErrNotFound)
}

// WarmupResult reports how many records each collection loaded.
type WarmupResult map[string]int

// Warmup reloads every list concurrently and refreshes the cache.
func (d *Directory) Warmup(ctx context.Context) (WarmupResult, error) {
	resources := []refresher{d.Sites, d.Suppliers, d.ItemCategories, d.Brands, d.Materials}
	counts := make([]int, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range resources {
		g.Go(func() error {
			n, err := res.Refresh(gctx)
			if err != nil {
				return fmt.Errorf("masterdata: warmup %s: %w", res.Name(), err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result := make(WarmupResult, len(resources))
	for i, res := range resources {
		result[res.Name()] = counts[i]
	}
	d.logger.Info("masterdata warmed up", slog.Any("counts", result))
	return result, nil
}
