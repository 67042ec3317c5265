// internal/urlkey/resolver.go
//
// Url key uniqueness resolver and row-level key derivation.
//
// Context
// -------
// MakeUnique answers “which url key does this product get in this store?”
// by probing the varchar attribute table (plus the batch reservations) with
// the numbering scheme in probe.go.  Derive sits in front of it and picks
// the raw source for the key: explicit column, persisted value, product
// name, or the admin row's key.
//
// Notes
// -----
//   - Scope is (entity type, store); values of other stores never collide.
//   - Oxford commas, two spaces after periods.
package urlkey

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
	"github.com/yanizio/adept-urlrewrite/internal/slug"
)

// ProductEntityTypeID is the eav_entity_type id of catalog_product in a
// stock Magento 2 schema.  The CLI reads the real value at start-up.
const ProductEntityTypeID = 4

// Scope is the uniqueness scope of a url key.
type Scope struct {
	EntityTypeID int
	StoreID      int64
}

// Resolver makes url keys unique within a Scope.
type Resolver struct {
	values    catalog.VarcharAttributeRepository
	batch     *Context
	maxProbes int
	log       *zap.SugaredLogger
}

// NewResolver wires a Resolver.  batch may be nil when no in-batch
// reservations are wanted.
func NewResolver(values catalog.VarcharAttributeRepository, batch *Context, maxProbes int, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.S()
	}
	return &Resolver{values: values, batch: batch, maxProbes: maxProbes, log: log}
}

// MakeUnique returns candidate, or a numerically suffixed variant of it,
// that no other entity holds in scope.
func (r *Resolver) MakeUnique(ctx context.Context, entity catalog.ProductRef, candidate string, scope Scope) (string, error) {
	lookup := func(ctx context.Context, value string) (int64, bool, error) {
		if r.batch != nil {
			if owner, ok := r.batch.Reserved(scope.StoreID, value); ok {
				return owner, true, nil
			}
		}
		v, err := r.values.FindByCodeTypeStoreAndValue(ctx, catalog.AttributeCodeURLKey, scope.EntityTypeID, scope.StoreID, value)
		if err != nil || v == nil {
			return 0, false, err
		}
		return v.EntityID, true, nil
	}

	out, err := Probe(ctx, entity.EntityID, candidate, r.maxProbes, Suffix, lookup)
	if err != nil {
		return "", err
	}
	if out.Collisions > 0 {
		metrics.URLKeyCollisionsTotal.Add(float64(out.Collisions))
		r.log.Debugw("url key collision resolved",
			"sku", entity.SKU, "candidate", candidate, "value", out.Value,
			"store_id", scope.StoreID, "reused", out.Reused)
	}
	return out.Value, nil
}

// -----------------------------------------------------------------------------
// Derivation
// -----------------------------------------------------------------------------

// Source names where a url key came from.
type Source string

const (
	SourceColumn    Source = "url_key"
	SourcePersisted Source = "persisted"
	SourceName      Source = "name"
	SourceAdmin     Source = "admin"
)

// Input is the row data Derive needs.
type Input struct {
	Entity catalog.ProductRef
	Store  catalog.Store
	URLKey string
	Name   string
	// Existing is true when the product was persisted before this import.
	Existing bool
}

// Derived is the resolved url key of one row in one store.
type Derived struct {
	Candidate catalog.URLKeyCandidate
	Key       string
	Source    Source
}

// DeriverOptions mirror the import.* configuration switches.
type DeriverOptions struct {
	EntityTypeID         int
	UpdateURLKeyFromName bool
	Normalizer           *slug.Normalizer
}

// Deriver picks the url key source for a row and makes it unique.
type Deriver struct {
	resolver *Resolver
	values   catalog.VarcharAttributeRepository
	batch    *Context
	opts     DeriverOptions
}

// NewDeriver wires a Deriver.  batch must not be nil.
func NewDeriver(resolver *Resolver, values catalog.VarcharAttributeRepository, batch *Context, opts DeriverOptions) *Deriver {
	if opts.Normalizer == nil {
		opts.Normalizer = slug.New()
	}
	if opts.EntityTypeID == 0 {
		opts.EntityTypeID = ProductEntityTypeID
	}
	return &Deriver{resolver: resolver, values: values, batch: batch, opts: opts}
}

// Derive resolves, normalizes, and uniquifies the row's url key, then
// records it in the batch context.
func (d *Deriver) Derive(ctx context.Context, in Input) (Derived, error) {
	raw, src, err := d.source(ctx, in)
	if err != nil {
		return Derived{}, err
	}
	missing := &MissingURLSourceError{
		SKU:           in.Entity.SKU,
		StoreViewCode: in.Store.Code,
		Admin:         in.Store.IsAdmin(),
	}
	if raw == "" {
		missing.Reason = "neither url_key nor name is set"
		return Derived{}, missing
	}

	cand := catalog.URLKeyCandidate{
		RawValue:       raw,
		NormalizedSlug: d.opts.Normalizer.Normalize(raw),
		StoreID:        in.Store.ID,
	}
	if cand.NormalizedSlug == "" {
		missing.Reason = "value " + strconv.Quote(raw) + " normalizes to an empty key"
		return Derived{}, missing
	}

	key, err := d.resolver.MakeUnique(ctx, in.Entity, cand.NormalizedSlug,
		Scope{EntityTypeID: d.opts.EntityTypeID, StoreID: in.Store.ID})
	if err != nil {
		return Derived{}, err
	}

	if in.Store.IsAdmin() {
		d.batch.RememberAdminKey(in.Entity.SKU, key)
	}
	d.batch.Reserve(in.Store.ID, key, in.Entity.EntityID)
	return Derived{Candidate: cand, Key: key, Source: src}, nil
}

func (d *Deriver) source(ctx context.Context, in Input) (string, Source, error) {
	if v := strings.TrimSpace(in.URLKey); v != "" {
		return v, SourceColumn, nil
	}

	persisted := func() (string, error) {
		if !in.Existing || in.Entity.IsPlaceholder() {
			return "", nil
		}
		v, err := d.values.FindByEntityCodeAndStore(ctx, in.Entity.EntityID,
			catalog.AttributeCodeURLKey, d.opts.EntityTypeID, in.Store.ID)
		if err != nil || v == nil {
			return "", err
		}
		return v.Value, nil
	}

	if !d.opts.UpdateURLKeyFromName {
		v, err := persisted()
		if err != nil {
			return "", "", err
		}
		if v != "" {
			return v, SourcePersisted, nil
		}
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		return v, SourceName, nil
	}
	if !in.Store.IsAdmin() {
		if v, ok := d.batch.AdminKey(in.Entity.SKU); ok {
			return v, SourceAdmin, nil
		}
	}
	v, err := persisted()
	if err != nil {
		return "", "", err
	}
	if v != "" {
		return v, SourcePersisted, nil
	}
	return "", "", nil
}
