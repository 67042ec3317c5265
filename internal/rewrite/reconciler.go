// internal/rewrite/reconciler.go
//
// Rewrite reconciler (update mode).
//
// Context
// -------
// A freshly built rewrite set is matched against what url_rewrite already
// holds for the same product and store:
//
//  1. Load     ─ every persisted rewrite for (product, entity, store).
//  2. Match    ─ by request path.  An autogenerated old entry absorbs the
//     new target and metadata (Update, or Unchanged when nothing differs).
//     A 301 this product left behind on an earlier rename (its target is
//     one of the product's own paths) is reclaimed the same way.  Any other
//     manual old entry wins; the new entry is Discarded.
//  3. Unmatched old entries that are autogenerated and not already a
//     redirect become 301 redirects to their replacement and lose the
//     autogenerated flag, so later runs leave them alone.
//
// The replacement of an unmatched entry is the surviving new rewrite for the
// same category, else the surviving root entry.  Discarded entries are
// served by someone else and never become a target.  With no survivor at
// all (product no longer visible, or every path shadowed) the redirect
// points at the product route itself.
//
// Notes
// -----
//   - Reconcile is read-only; Apply performs the writes.
//   - Redirect chains are not collapsed.  Earlier redirects are manual rows
//     by then and never rewritten.
//   - Oxford commas, two spaces after periods.
package rewrite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
)

// Plan is the reconciled write set for one product in one store.
type Plan struct {
	Create    []catalog.URLRewrite // new request paths
	Update    []catalog.URLRewrite // merged into an existing autogenerated row
	Unchanged []catalog.URLRewrite // merged row identical to what is stored
	Discarded []catalog.URLRewrite // new entries shadowed by a manual row
	Redirects []catalog.URLRewrite // old rows converted to 301
	Untouched []catalog.URLRewrite // old rows left as they are
}

// Writes is the number of rows Apply will persist.
func (p Plan) Writes() int { return len(p.Create) + len(p.Update) + len(p.Redirects) }

// Reconciler matches built rewrites against url_rewrite.
type Reconciler struct {
	rewrites    catalog.URLRewriteRepository
	writer      catalog.URLRewriteWriter
	saveHistory bool
	log         *zap.SugaredLogger
}

// NewReconciler wires a Reconciler.  saveHistory=false leaves unmatched
// rows untouched instead of converting them.
func NewReconciler(rewrites catalog.URLRewriteRepository, writer catalog.URLRewriteWriter,
	saveHistory bool, log *zap.SugaredLogger) *Reconciler {
	if log == nil {
		log = zap.S()
	}
	return &Reconciler{rewrites: rewrites, writer: writer, saveHistory: saveHistory, log: log}
}

// Reconcile builds the Plan for entity in storeID.  Placeholder entities
// have no persisted rows, so everything in built is a Create.
func (r *Reconciler) Reconcile(ctx context.Context, entity catalog.ProductRef, storeID int64,
	built []catalog.URLRewrite) (Plan, error) {

	var existing []catalog.URLRewrite
	if !entity.IsPlaceholder() {
		var err error
		existing, err = r.rewrites.FindByEntityTypeAndEntityIDAndStoreID(ctx,
			catalog.EntityTypeProduct, entity.EntityID, storeID)
		if err != nil {
			return Plan{}, fmt.Errorf("load rewrites for %q: %w", entity.SKU, err)
		}
	}

	byPath := make(map[string]catalog.URLRewrite, len(existing))
	for _, old := range existing {
		byPath[old.RequestPath] = old
	}

	owned := make(map[string]bool, len(existing)+len(built))
	for _, rw := range existing {
		owned[rw.RequestPath] = true
	}
	for _, rw := range built {
		owned[rw.RequestPath] = true
	}

	var (
		plan      Plan
		survivors []catalog.URLRewrite
	)
	for _, nw := range built {
		old, ok := byPath[nw.RequestPath]
		if !ok {
			plan.Create = append(plan.Create, nw)
			survivors = append(survivors, nw)
			continue
		}
		delete(byPath, nw.RequestPath)

		reclaim := !old.IsAutogenerated && old.IsRedirect() && owned[old.TargetPath]
		if !old.IsAutogenerated && !reclaim {
			r.log.Infow("manual rewrite kept, generated entry discarded",
				"sku", entity.SKU, "store_id", storeID, "request_path", nw.RequestPath)
			plan.Discarded = append(plan.Discarded, nw)
			continue
		}

		merged := old
		merged.TargetPath = nw.TargetPath
		merged.RedirectType = nw.RedirectType
		merged.Metadata = nw.Metadata
		merged.IsAutogenerated = nw.IsAutogenerated
		survivors = append(survivors, merged)
		if reclaim {
			r.log.Infow("redirect history reclaimed",
				"sku", entity.SKU, "store_id", storeID, "request_path", nw.RequestPath)
		}
		if merged.SameContent(old) {
			plan.Unchanged = append(plan.Unchanged, merged)
		} else {
			plan.Update = append(plan.Update, merged)
		}
	}

	for _, old := range existing {
		if _, left := byPath[old.RequestPath]; !left {
			continue
		}
		if !r.saveHistory || !old.IsAutogenerated || old.IsRedirect() {
			plan.Untouched = append(plan.Untouched, old)
			continue
		}
		conv := old
		conv.RedirectType = catalog.RedirectPermanent
		conv.IsAutogenerated = false
		if target, ok := replacement(survivors, old); ok {
			conv.TargetPath = target.RequestPath
			conv.Metadata = target.Metadata
		} else {
			r.log.Debugw("no surviving rewrite, redirecting to product route",
				"sku", entity.SKU, "store_id", storeID, "request_path", old.RequestPath)
			conv.TargetPath = catalog.ProductTargetPath(entity.EntityID)
			conv.Metadata = catalog.Metadata{}
		}
		plan.Redirects = append(plan.Redirects, conv)
	}
	return plan, nil
}

// replacement picks the redirect target for old among the surviving
// entries: the one of the same category, else the root entry.  A redirect
// never points at itself.
func replacement(built []catalog.URLRewrite, old catalog.URLRewrite) (catalog.URLRewrite, bool) {
	var root *catalog.URLRewrite
	for i := range built {
		nw := built[i]
		if nw.RequestPath == old.RequestPath {
			continue
		}
		if old.Metadata.HasCategory() && nw.Metadata.CategoryKey() == old.Metadata.CategoryKey() {
			return nw, true
		}
		if !nw.Metadata.HasCategory() && root == nil {
			root = &built[i]
		}
	}
	if root != nil {
		return *root, true
	}
	return catalog.URLRewrite{}, false
}

// Apply persists every write in the plan.
func (r *Reconciler) Apply(ctx context.Context, plan Plan) error {
	return Persist(ctx, r.writer, plan)
}

// Persist writes Create, Update, and Redirects through w, in that order.
func Persist(ctx context.Context, w catalog.URLRewriteWriter, plan Plan) error {
	groups := []struct {
		action string
		rows   []catalog.URLRewrite
	}{
		{metrics.ActionCreate, plan.Create},
		{metrics.ActionUpdate, plan.Update},
		{metrics.ActionRedirect, plan.Redirects},
	}
	for _, g := range groups {
		for _, rw := range g.rows {
			if _, err := w.Persist(ctx, rw); err != nil {
				return fmt.Errorf("persist %s %q (store %d): %w", g.action, rw.RequestPath, rw.StoreID, err)
			}
			metrics.RewritesPersistedTotal.WithLabelValues(g.action).Inc()
		}
	}
	if n := len(plan.Discarded); n > 0 {
		metrics.RewritesDiscardedTotal.Add(float64(n))
	}
	return nil
}
