// internal/catalog/ports.go
//
// Collaborator contracts.
//
// The pipeline never talks to the database directly.  Every read or write
// goes through one of the interfaces below; internal/persistence implements
// them on MySQL and the per-bunch category.Snapshot implements the read-only
// category and store lookups in memory.
//
// Lookups that find nothing return ErrNotFound (wrapped or bare); callers
// test with errors.Is.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// CategoryRepository reads category reference data.
type CategoryRepository interface {
	FindByPath(ctx context.Context, path, storeViewCode string) (Category, error)
	FindByID(ctx context.Context, id int64) (Category, error)
}

// RootCategoryProvider returns the root category of a store view.
type RootCategoryProvider interface {
	GetRootCategory(ctx context.Context, storeViewCode string) (Category, error)
}

// StoreProvider resolves store view codes.  Stores lists every store view,
// admin included, ordered by id.
type StoreProvider interface {
	StoreByCode(ctx context.Context, code string) (Store, error)
	Stores(ctx context.Context) ([]Store, error)
}

// VarcharAttributeRepository reads varchar EAV values.  Find methods return
// (nil, nil) when nothing matches.
type VarcharAttributeRepository interface {
	FindByCodeTypeStoreAndValue(ctx context.Context, code string, entityTypeID int, storeID int64, value string) (*AttributeValue, error)
	FindByEntityCodeAndStore(ctx context.Context, entityID int64, code string, entityTypeID int, storeID int64) (*AttributeValue, error)
}

// URLRewriteRepository reads persisted rewrites.  FindByRequestPath returns
// (nil, nil) when the path is free.
type URLRewriteRepository interface {
	FindByEntityTypeAndEntityIDAndStoreID(ctx context.Context, entityType string, entityID, storeID int64) ([]URLRewrite, error)
	FindByRequestPath(ctx context.Context, requestPath string, storeID int64) (*URLRewrite, error)
}

// URLRewriteWriter persists a rewrite and returns its id.  Rows with a
// non-zero ID are updated in place; others are inserted, keyed by request
// path and store.
type URLRewriteWriter interface {
	Persist(ctx context.Context, rewrite URLRewrite) (int64, error)
}

// ProductCategoryRelationRepository lists direct category assignments.
type ProductCategoryRelationRepository interface {
	FindByProductID(ctx context.Context, productID int64) ([]int64, error)
}

// ProductRepository looks up existing products.
type ProductRepository interface {
	FindBySKU(ctx context.Context, sku string, storeID int64) (Product, error)
}
