// internal/importer/processor.go
//
// Row processor.
//
// Context
// -------
// Process drives one row through the pipeline:
//
//  1. Store view and product lookup.  Unknown SKUs get a placeholder id
//     that stays stable for the rest of the bunch.
//  2. Url key derivation (urlkey.Deriver).  The key is returned in
//     Result.Columns so the caller can persist the attribute.
//  3. Target stores: a store-view row targets its own store; an admin row
//     fans out to every store view that has no url key of its own.
//  4. Per target store: category resolution (row column, else persisted
//     relations), rewrite set build, then reconcile + apply (update mode)
//     or straight persist (add mode).
//
// Placeholder entities stop after step 2.  A product that is not visible
// individually builds nothing; in update mode its persisted rewrites still
// go through the reconciler so history turns them into redirects.
//
// Notes
// -----
//   - A Processor owns the per-bunch urlkey.Context; build a new one for
//     every bunch.
//   - Strict mode turns every recoverable problem into a RowError.
//   - Oxford commas, two spaces after periods.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/category"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
	"github.com/yanizio/adept-urlrewrite/internal/rewrite"
	"github.com/yanizio/adept-urlrewrite/internal/slug"
	"github.com/yanizio/adept-urlrewrite/internal/urlkey"
)

// Options mirror the import.* configuration block.
type Options struct {
	ProductURLSuffix        string
	SaveRewritesHistory     bool
	UseCategoriesForURLPath bool
	UpdateURLKeyFromName    bool
	Strict                  bool
	UpdateMode              bool
	MaxProbes               int
	EntityTypeID            int
	// ContinueOnFatal keeps a non-strict Run going past rows that failed
	// with a fatal error.  Off, the first failed row aborts the run.
	ContinueOnFatal bool
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		ProductURLSuffix:        rewrite.DefaultSuffix,
		SaveRewritesHistory:     true,
		UseCategoriesForURLPath: true,
		UpdateURLKeyFromName:    true,
		UpdateMode:              true,
		MaxProbes:               urlkey.DefaultMaxProbes,
		EntityTypeID:            urlkey.ProductEntityTypeID,
	}
}

// Deps are the collaborators of a Processor.  Categories, Roots, and Stores
// are normally one category.Snapshot.
type Deps struct {
	Products   catalog.ProductRepository
	Values     catalog.VarcharAttributeRepository
	Rewrites   catalog.URLRewriteRepository
	Writer     catalog.URLRewriteWriter
	Relations  catalog.ProductCategoryRelationRepository
	Categories catalog.CategoryRepository
	Roots      catalog.RootCategoryProvider
	Stores     catalog.StoreProvider
	Normalizer *slug.Normalizer
}

// StorePlan is the reconciled rewrite plan for one target store.
type StorePlan struct {
	StoreID   int64
	StoreCode string
	// URLKey is the key the rewrites of this store were built from.  It
	// differs from Columns["url_key"] when an admin key collided there.
	URLKey string
	Plan   rewrite.Plan
}

// Result is the outcome of one row.
type Result struct {
	SKU           string
	StoreViewCode string
	Entity        catalog.ProductRef
	// Columns carries values the caller writes back, keyed by column name.
	Columns  map[string]string
	Plans    []StorePlan
	Warnings []Warning
}

// Processor runs rows of one bunch.
type Processor struct {
	deps       Deps
	opts       Options
	log        *zap.SugaredLogger
	batch      *urlkey.Context
	resolver   *urlkey.Resolver
	deriver    *urlkey.Deriver
	categories *category.Resolver
	builder    *rewrite.Builder
	reconciler *rewrite.Reconciler

	mu           sync.Mutex
	placeholders catalog.PlaceholderAllocator
	bySKU        map[string]int64
}

// NewProcessor wires the pipeline.  log may be nil.
func NewProcessor(deps Deps, opts Options, log *zap.SugaredLogger) *Processor {
	if log == nil {
		log = zap.S()
	}
	if opts.EntityTypeID == 0 {
		opts.EntityTypeID = urlkey.ProductEntityTypeID
	}
	batch := urlkey.NewContext()
	resolver := urlkey.NewResolver(deps.Values, batch, opts.MaxProbes, log)

	return &Processor{
		deps:     deps,
		opts:     opts,
		log:      log,
		batch:    batch,
		resolver: resolver,
		deriver: urlkey.NewDeriver(resolver, deps.Values, batch, urlkey.DeriverOptions{
			EntityTypeID:         opts.EntityTypeID,
			UpdateURLKeyFromName: opts.UpdateURLKeyFromName,
			Normalizer:           deps.Normalizer,
		}),
		categories: category.NewResolver(deps.Categories, deps.Roots,
			category.WithStrict(opts.Strict), category.WithLogger(log)),
		builder: rewrite.NewBuilder(deps.Rewrites, rewrite.BuilderOptions{
			Suffix:        opts.ProductURLSuffix,
			UseCategories: opts.UseCategoriesForURLPath,
			Strict:        opts.Strict,
			MaxProbes:     opts.MaxProbes,
		}, log),
		reconciler: rewrite.NewReconciler(deps.Rewrites, deps.Writer, opts.SaveRewritesHistory, log),
		bySKU:      map[string]int64{},
	}
}

// Process runs one row.  The returned error is always a *RowError.
func (p *Processor) Process(ctx context.Context, row Row) (Result, error) {
	res := Result{SKU: row.SKU, StoreViewCode: row.StoreViewCode, Columns: map[string]string{}}
	fail := func(column string, err error) (Result, error) {
		if column == "" {
			column = columnOf(err)
		}
		metrics.RowsProcessedTotal.WithLabelValues("failed").Inc()
		return res, &RowError{File: row.File, Line: row.Line, SKU: row.SKU, Column: column, Err: err}
	}

	store, err := p.deps.Stores.StoreByCode(ctx, row.StoreViewCode)
	if err != nil {
		return fail(ColumnStoreViewCode, fmt.Errorf("store view %q: %w", row.StoreViewCode, err))
	}
	visibility, err := ParseVisibility(row.Visibility)
	if err != nil {
		return fail(ColumnVisibility, err)
	}

	entity, existing, err := p.product(ctx, row.SKU, store.ID, &visibility)
	if err != nil {
		return fail(ColumnSKU, err)
	}
	res.Entity = entity

	derived, err := p.deriver.Derive(ctx, urlkey.Input{
		Entity:   entity,
		Store:    store,
		URLKey:   row.URLKey,
		Name:     row.Name,
		Existing: existing,
	})
	if err != nil {
		if werr := p.soften(&res, row, err); werr != nil {
			return fail("", werr)
		}
		metrics.RowsProcessedTotal.WithLabelValues("skipped").Inc()
		return res, nil
	}
	res.Columns[ColumnURLKey] = derived.Key

	switch {
	case entity.IsPlaceholder():
		p.warn(&res, row, KindPlaceholder, ColumnSKU,
			"product is not persisted yet, url key resolved but rewrites skipped")
		metrics.RowsProcessedTotal.WithLabelValues("skipped").Inc()
		return res, nil
	case !visibility.Visible() && !(existing && p.opts.UpdateMode):
		p.log.Debugw("not visible individually, no rewrites", "sku", row.SKU, "store", store.Code)
		metrics.RowsProcessedTotal.WithLabelValues("ok").Inc()
		return res, nil
	}

	targets, err := p.targets(ctx, entity, store, derived.Key)
	if err != nil {
		return fail("", err)
	}
	for _, t := range targets {
		var plan rewrite.Plan
		if visibility.Visible() {
			plan, err = p.rewriteStore(ctx, &res, row, entity, existing, t.store, t.key)
		} else {
			plan, err = p.retire(ctx, entity, t.store)
		}
		if err != nil {
			return fail("", err)
		}
		res.Plans = append(res.Plans, StorePlan{StoreID: t.store.ID, StoreCode: t.store.Code, URLKey: t.key, Plan: plan})
	}

	metrics.RowsProcessedTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// product resolves the SKU.  Unknown SKUs get a placeholder id; a blank
// row visibility is taken from the persisted product.
func (p *Processor) product(ctx context.Context, sku string, storeID int64, vis *catalog.Visibility) (catalog.ProductRef, bool, error) {
	prod, err := p.deps.Products.FindBySKU(ctx, sku, storeID)
	switch {
	case err == nil:
		if *vis == catalog.VisibilityUnset {
			*vis = prod.Visibility
		}
		return catalog.ProductRef{SKU: sku, EntityID: prod.EntityID}, true, nil
	case errors.Is(err, catalog.ErrNotFound):
		p.mu.Lock()
		defer p.mu.Unlock()
		id, ok := p.bySKU[sku]
		if !ok {
			id = p.placeholders.Next()
			p.bySKU[sku] = id
		}
		return catalog.ProductRef{SKU: sku, EntityID: id}, false, nil
	default:
		return catalog.ProductRef{}, false, fmt.Errorf("product lookup: %w", err)
	}
}

type target struct {
	store catalog.Store
	key   string
}

// targets lists the stores that get rewrites for this row.
func (p *Processor) targets(ctx context.Context, entity catalog.ProductRef, store catalog.Store, key string) ([]target, error) {
	if !store.IsAdmin() {
		return []target{{store: store, key: key}}, nil
	}

	stores, err := p.deps.Stores.Stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	var out []target
	for _, st := range stores {
		if st.IsAdmin() {
			continue
		}
		own, err := p.deps.Values.FindByEntityCodeAndStore(ctx, entity.EntityID,
			catalog.AttributeCodeURLKey, p.opts.EntityTypeID, st.ID)
		if err != nil {
			return nil, fmt.Errorf("store %q url key: %w", st.Code, err)
		}
		if own != nil {
			continue // the store view has its own key and its own rows
		}
		k, err := p.resolver.MakeUnique(ctx, entity, key,
			urlkey.Scope{EntityTypeID: p.opts.EntityTypeID, StoreID: st.ID})
		if err != nil {
			return nil, fmt.Errorf("store %q: %w", st.Code, err)
		}
		p.batch.Reserve(st.ID, k, entity.EntityID)
		out = append(out, target{store: st, key: k})
	}
	return out, nil
}

// rewriteStore resolves categories, builds, and persists for one store.
func (p *Processor) rewriteStore(ctx context.Context, res *Result, row Row, entity catalog.ProductRef,
	existing bool, store catalog.Store, key string) (rewrite.Plan, error) {

	var (
		cats category.Result
		err  error
	)
	switch {
	case len(row.Categories) > 0:
		cats, err = p.categories.Resolve(ctx, row.Categories, store.Code)
	case existing:
		var ids []int64
		ids, err = p.deps.Relations.FindByProductID(ctx, entity.EntityID)
		if err == nil {
			cats, err = p.categories.ResolveIDs(ctx, ids, store.Code)
		}
	}
	if err != nil {
		return rewrite.Plan{}, err
	}
	for _, s := range cats.Skipped {
		p.warnErr(res, row, s)
	}

	built, err := p.builder.Build(ctx, entity, key, cats.Categories, store)
	if err != nil {
		return rewrite.Plan{}, err
	}
	for _, s := range built.Skipped {
		p.warnErr(res, row, s)
	}

	if !p.opts.UpdateMode {
		plan := rewrite.Plan{Create: built.Rewrites}
		return plan, rewrite.Persist(ctx, p.deps.Writer, plan)
	}
	plan, err := p.reconciler.Reconcile(ctx, entity, store.ID, built.Rewrites)
	if err != nil {
		return rewrite.Plan{}, err
	}
	return plan, p.reconciler.Apply(ctx, plan)
}

// retire reconciles an empty rewrite set, so the rows of a product that is
// no longer visible individually become redirects to the product route.
func (p *Processor) retire(ctx context.Context, entity catalog.ProductRef, store catalog.Store) (rewrite.Plan, error) {
	p.log.Debugw("not visible individually, retiring rewrites", "sku", entity.SKU, "store", store.Code)
	plan, err := p.reconciler.Reconcile(ctx, entity, store.ID, nil)
	if err != nil {
		return rewrite.Plan{}, err
	}
	return plan, p.reconciler.Apply(ctx, plan)
}

// soften downgrades a recoverable error to a warning.  It returns err back
// when the error is fatal or strict mode is on.
func (p *Processor) soften(res *Result, row Row, err error) error {
	if _, _, ok := recoverable(err); !ok || p.opts.Strict {
		return err
	}
	p.warnErr(res, row, err)
	return nil
}

func (p *Processor) warnErr(res *Result, row Row, err error) {
	kind, column, _ := recoverable(err)
	p.warn(res, row, kind, column, err.Error())
}

func (p *Processor) warn(res *Result, row Row, kind, column, msg string) {
	w := Warning{
		File:          row.File,
		Line:          row.Line,
		Column:        column,
		SKU:           row.SKU,
		StoreViewCode: row.StoreViewCode,
		Kind:          kind,
		Message:       msg,
	}
	res.Warnings = append(res.Warnings, w)
	metrics.WarningsTotal.WithLabelValues(kind).Inc()
	p.log.Warnw(msg, "sku", row.SKU, "store", row.StoreViewCode, "kind", kind, "line", row.Line)
}
