// internal/category/resolver.go
//
// Category path resolver.
//
// Context
// -------
// A product is reachable under every category it is directly assigned to,
// plus every *anchor* ancestor of those categories below the store root.
// Given the row's category paths (or the persisted direct relations) the
// resolver walks parent links upward and returns the categories whose
// url_path must receive a product rewrite.
//
// Workflow
// --------
//  1. Look up each directly assigned category for the store view.
//  2. Recurse parent-first, stopping at the store root and at the absolute
//     root (id 1).  Intermediate non-anchor ancestors are walked through but
//     not included.
//  3. Include the category when it is directly assigned or an anchor.
//  4. De-duplicate by url_path, first seen wins.
//
// Notes
// -----
//   - Each walk carries its own visited set plus a depth bound, so a cyclic
//     parent chain terminates even when it never reaches id 1.
//   - Missing ancestors end the walk quietly; only missing *assigned* paths
//     are reported.
//   - Oxford commas, two spaces after periods.
package category

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// DefaultMaxDepth bounds the parent walk.  Magento trees rarely exceed ten
// levels.
const DefaultMaxDepth = 64

// StoreScoped is implemented by category sources that can answer with
// store-view specific values (url_path, name, is_anchor).
type StoreScoped interface {
	ForStoreView(code string) catalog.CategoryRepository
}

// Result is the outcome of one resolution.  Skipped holds the
// UnresolvableCategoryPathError values swallowed in non-strict mode.
type Result struct {
	Categories []catalog.Category
	Skipped    []error
}

// URLPaths returns the url paths of Categories in order.
func (r Result) URLPaths() []string {
	out := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		out = append(out, c.URLPath)
	}
	return out
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrict makes unresolvable paths abort resolution.
func WithStrict(strict bool) Option { return func(r *Resolver) { r.strict = strict } }

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option { return func(r *Resolver) { r.maxDepth = n } }

// WithLogger sets the logger; the global sugared logger is used otherwise.
func WithLogger(l *zap.SugaredLogger) Option { return func(r *Resolver) { r.log = l } }

// Resolver computes the category set for a product.
type Resolver struct {
	categories catalog.CategoryRepository
	roots      catalog.RootCategoryProvider
	strict     bool
	maxDepth   int
	log        *zap.SugaredLogger
}

// NewResolver wires a Resolver to its collaborators.
func NewResolver(categories catalog.CategoryRepository, roots catalog.RootCategoryProvider, opts ...Option) *Resolver {
	r := &Resolver{
		categories: categories,
		roots:      roots,
		maxDepth:   DefaultMaxDepth,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = zap.S()
	}
	return r
}

// ResolvePaths returns the de-duplicated url paths for the given category
// paths.
func (r *Resolver) ResolvePaths(ctx context.Context, paths []string, storeViewCode string) ([]string, error) {
	res, err := r.Resolve(ctx, paths, storeViewCode)
	if err != nil {
		return nil, err
	}
	return res.URLPaths(), nil
}

// Resolve looks up each category path and expands it with anchor ancestors.
func (r *Resolver) Resolve(ctx context.Context, paths []string, storeViewCode string) (Result, error) {
	repo := r.scoped(storeViewCode)
	direct := make([]catalog.Category, 0, len(paths))
	var res Result

	for _, p := range paths {
		cat, err := repo.FindByPath(ctx, p, storeViewCode)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return Result{}, err
			}
			uerr := &UnresolvableCategoryPathError{Path: p, StoreViewCode: storeViewCode, Err: err}
			if r.strict {
				return Result{}, uerr
			}
			res.Skipped = append(res.Skipped, uerr)
			continue
		}
		direct = append(direct, cat)
	}

	cats, err := r.expand(ctx, repo, direct, storeViewCode)
	if err != nil {
		return Result{}, err
	}
	res.Categories = cats
	return res, nil
}

// ResolveIDs is Resolve for persisted direct relations.
func (r *Resolver) ResolveIDs(ctx context.Context, ids []int64, storeViewCode string) (Result, error) {
	repo := r.scoped(storeViewCode)
	direct := make([]catalog.Category, 0, len(ids))
	var res Result

	for _, id := range ids {
		cat, err := repo.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return Result{}, err
			}
			uerr := &UnresolvableCategoryPathError{
				Path:          "#" + strconv.FormatInt(id, 10),
				StoreViewCode: storeViewCode,
				Err:           err,
			}
			if r.strict {
				return Result{}, uerr
			}
			res.Skipped = append(res.Skipped, uerr)
			continue
		}
		direct = append(direct, cat)
	}

	cats, err := r.expand(ctx, repo, direct, storeViewCode)
	if err != nil {
		return Result{}, err
	}
	res.Categories = cats
	return res, nil
}

func (r *Resolver) scoped(storeViewCode string) catalog.CategoryRepository {
	if s, ok := r.categories.(StoreScoped); ok {
		return s.ForStoreView(storeViewCode)
	}
	return r.categories
}

func (r *Resolver) expand(ctx context.Context, repo catalog.CategoryRepository, direct []catalog.Category, storeViewCode string) ([]catalog.Category, error) {
	if len(direct) == 0 {
		return nil, nil
	}
	root, err := r.roots.GetRootCategory(ctx, storeViewCode)
	if err != nil {
		return nil, fmt.Errorf("root category for %q: %w", storeViewCode, err)
	}

	acc := newCollector()
	for _, cat := range direct {
		w := walker{repo: repo, root: root, max: r.maxDepth, visited: map[int64]bool{}, acc: acc, log: r.log}
		if err := w.walk(ctx, cat, true, 0); err != nil {
			return nil, err
		}
	}
	return acc.items, nil
}

// -----------------------------------------------------------------------------
// walker
// -----------------------------------------------------------------------------

type walker struct {
	repo    catalog.CategoryRepository
	root    catalog.Category
	max     int
	visited map[int64]bool
	acc     *collector
	log     *zap.SugaredLogger
}

func (w *walker) walk(ctx context.Context, cat catalog.Category, topLevel bool, depth int) error {
	if cat.ID == catalog.AbsoluteRootCategoryID || cat.ID == w.root.ID {
		return nil
	}
	if w.visited[cat.ID] {
		w.log.Warnw("category cycle detected", "category_id", cat.ID)
		return nil
	}
	if depth > w.max {
		return fmt.Errorf("category %d: %w", cat.ID, ErrDepthExceeded)
	}
	w.visited[cat.ID] = true

	if p := cat.ParentID; p != 0 && p != w.root.ID && p != catalog.AbsoluteRootCategoryID {
		parent, err := w.repo.FindByID(ctx, p)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			w.log.Debugw("category parent missing", "category_id", cat.ID, "parent_id", p)
		case err != nil:
			return err
		default:
			if err := w.walk(ctx, parent, false, depth+1); err != nil {
				return err
			}
		}
	}

	if topLevel || cat.IsAnchor {
		w.acc.add(cat)
	}
	return nil
}

// collector keeps categories unique by url path in first-seen order.
// Categories without a url path are keyed by id so the builder can still
// report them.
type collector struct {
	seen  map[string]bool
	items []catalog.Category
}

func newCollector() *collector { return &collector{seen: map[string]bool{}} }

func (c *collector) add(cat catalog.Category) {
	key := cat.URLPath
	if key == "" {
		key = "#" + strconv.FormatInt(cat.ID, 10)
	}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.items = append(c.items, cat)
}
