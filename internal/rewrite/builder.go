// internal/rewrite/builder.go
//
// Rewrite set builder.
//
// Context
// -------
// For one product in one store the builder emits:
//
//   - the root entry   {urlKey}{suffix}            → catalog/product/view/id/{id}
//   - one per category {urlPath}/{urlKey}{suffix}  → …/id/{id}/category/{cid}
//
// The root entry carries no category metadata and is always first.  Category
// request paths are probed against url_rewrite with the url-key numbering
// scheme, so a path already held by another entity (a category, a CMS page,
// another product) gets a numeric suffix instead of being clobbered.
//
// Notes
// -----
//   - A category without url_path cannot produce a request path.  Strict
//     mode returns MissingCategoryURLPathError; otherwise the entry is
//     skipped and the error collected.
//   - Oxford commas, two spaces after periods.
package rewrite

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
	"github.com/yanizio/adept-urlrewrite/internal/urlkey"
)

// BuilderOptions mirror the import.* configuration switches.
type BuilderOptions struct {
	Suffix        string
	UseCategories bool
	Strict        bool
	MaxProbes     int
}

// BuildResult is the rewrite set for one product in one store.  Skipped
// holds MissingCategoryURLPathError values swallowed in non-strict mode.
type BuildResult struct {
	Rewrites []catalog.URLRewrite
	Skipped  []error
}

// Builder builds rewrite sets.  rewrites may be nil, which disables the
// request-path collision probe.
type Builder struct {
	rewrites catalog.URLRewriteRepository
	opts     BuilderOptions
	log      *zap.SugaredLogger
}

// NewBuilder wires a Builder.
func NewBuilder(rewrites catalog.URLRewriteRepository, opts BuilderOptions, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.S()
	}
	return &Builder{rewrites: rewrites, opts: opts, log: log}
}

// Build returns the root entry followed by one entry per category.
func (b *Builder) Build(ctx context.Context, entity catalog.ProductRef, urlKey string,
	categories []catalog.Category, store catalog.Store) (BuildResult, error) {

	var res BuildResult
	seen := map[string]bool{}

	root := catalog.URLRewrite{
		EntityType:      catalog.EntityTypeProduct,
		EntityID:        entity.EntityID,
		RequestPath:     urlKey + b.opts.Suffix,
		TargetPath:      catalog.ProductTargetPath(entity.EntityID),
		StoreID:         store.ID,
		RedirectType:    catalog.RedirectNone,
		IsAutogenerated: true,
	}
	res.Rewrites = append(res.Rewrites, root)
	seen[root.RequestPath] = true

	if !b.opts.UseCategories {
		return res, nil
	}

	for _, cat := range categories {
		if cat.ID == store.RootCategoryID || cat.ID == catalog.AbsoluteRootCategoryID {
			continue
		}
		if strings.TrimSpace(cat.URLPath) == "" {
			err := &MissingCategoryURLPathError{CategoryID: cat.ID, SKU: entity.SKU, StoreID: store.ID}
			if b.opts.Strict {
				return BuildResult{}, err
			}
			b.log.Warnw("category rewrite skipped", "err", err)
			res.Skipped = append(res.Skipped, err)
			continue
		}

		path, err := b.requestPath(ctx, entity, urlKey, cat.URLPath, store.ID)
		if err != nil {
			return BuildResult{}, err
		}
		if seen[path] {
			continue
		}
		seen[path] = true

		res.Rewrites = append(res.Rewrites, catalog.URLRewrite{
			EntityType:      catalog.EntityTypeProduct,
			EntityID:        entity.EntityID,
			RequestPath:     path,
			TargetPath:      catalog.ProductCategoryTargetPath(entity.EntityID, cat.ID),
			StoreID:         store.ID,
			RedirectType:    catalog.RedirectNone,
			IsAutogenerated: true,
			Metadata:        catalog.CategoryMetadata(cat.ID),
		})
	}
	return res, nil
}

// requestPath probes {urlPath}/{urlKey}[-n]{suffix} for a value free of
// other entities.
func (b *Builder) requestPath(ctx context.Context, entity catalog.ProductRef, urlKey, urlPath string, storeID int64) (string, error) {
	format := func(candidate string, n int) string {
		return JoinRequestPath(urlPath, urlkey.Suffix(candidate, n)) + b.opts.Suffix
	}
	if b.rewrites == nil {
		return format(urlKey, 0), nil
	}

	lookup := func(ctx context.Context, value string) (int64, bool, error) {
		rw, err := b.rewrites.FindByRequestPath(ctx, value, storeID)
		if err != nil || rw == nil {
			return 0, false, err
		}
		if rw.EntityType != catalog.EntityTypeProduct {
			return 0, true, nil // foreign entity type never matches
		}
		return rw.EntityID, true, nil
	}

	out, err := urlkey.Probe(ctx, entity.EntityID, urlKey, b.opts.MaxProbes, format, lookup)
	if err != nil {
		return "", err
	}
	if out.Collisions > 0 && !out.Reused {
		metrics.URLKeyCollisionsTotal.Add(float64(out.Collisions))
		b.log.Infow("category request path taken, suffixed",
			"sku", entity.SKU, "store_id", storeID, "request_path", out.Value)
	}
	return out.Value, nil
}
