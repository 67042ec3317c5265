package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

func build(t *testing.T, key string, cats ...catalog.Category) []catalog.URLRewrite {
	t.Helper()
	b := NewBuilder(nil, defaultOpts(), zap.NewNop().Sugar())
	res, err := b.Build(context.Background(), redShoe, key, cats, store1)
	require.NoError(t, err)
	return res.Rewrites
}

func reconcileAndApply(t *testing.T, repo *memRewrites, saveHistory bool, built []catalog.URLRewrite) Plan {
	t.Helper()
	r := NewReconciler(repo, repo, saveHistory, zap.NewNop().Sugar())
	plan, err := r.Reconcile(context.Background(), redShoe, store1.ID, built)
	require.NoError(t, err)
	require.NoError(t, r.Apply(context.Background(), plan))
	return plan
}

func TestReconcileFreshProductCreatesEverything(t *testing.T) {
	repo := newMemRewrites()
	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	assert.Len(t, plan.Create, 2)
	assert.Equal(t, 2, plan.Writes())
	assert.Len(t, repo.rows, 2)
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat, shoesCat))
	before := len(repo.rows)

	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat, shoesCat))
	assert.Zero(t, plan.Writes())
	assert.Len(t, plan.Unchanged, 3)
	assert.Empty(t, plan.Redirects)
	assert.Len(t, repo.rows, before)
}

func TestReconcileKeepsManualEntries(t *testing.T) {
	manual := catalog.URLRewrite{
		EntityType: catalog.EntityTypeProduct, EntityID: 42, StoreID: 1,
		RequestPath: "red-shoe.html", TargetPath: "promo/landing",
		RedirectType: catalog.RedirectTemporary,
	}
	repo := newMemRewrites(manual)

	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	require.Len(t, plan.Discarded, 1)
	assert.Equal(t, "red-shoe.html", plan.Discarded[0].RequestPath)

	got := repo.byPath(1, "red-shoe.html")
	assert.Equal(t, "promo/landing", got.TargetPath)
	assert.Equal(t, catalog.RedirectTemporary, got.RedirectType)
	assert.False(t, got.IsAutogenerated)
}

func TestReconcileRenameConvertsToRedirects(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))

	plan := reconcileAndApply(t, repo, true, build(t, "crimson-shoe", menCat))
	assert.Len(t, plan.Create, 2)
	require.Len(t, plan.Redirects, 2)

	oldRoot := repo.byPath(1, "red-shoe.html")
	assert.Equal(t, catalog.RedirectPermanent, oldRoot.RedirectType)
	assert.Equal(t, "crimson-shoe.html", oldRoot.TargetPath)
	assert.False(t, oldRoot.IsAutogenerated)

	oldMen := repo.byPath(1, "men/red-shoe.html")
	assert.Equal(t, "men/crimson-shoe.html", oldMen.TargetPath)
	assert.Equal(t, int64(3), oldMen.Metadata.CategoryKey())

	// a third run leaves the converted rows alone
	plan = reconcileAndApply(t, repo, true, build(t, "crimson-shoe", menCat))
	assert.Zero(t, plan.Writes())
	assert.Len(t, plan.Untouched, 2)
}

func TestReconcileDroppedCategoryRedirectsToRoot(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat, shoesCat))

	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	require.Len(t, plan.Redirects, 1)
	got := repo.byPath(1, "men/shoes/red-shoe.html")
	assert.Equal(t, "red-shoe.html", got.TargetPath)
	assert.False(t, got.Metadata.HasCategory())
}

func TestReconcileWithoutHistory(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))

	plan := reconcileAndApply(t, repo, false, build(t, "crimson-shoe", menCat))
	assert.Empty(t, plan.Redirects)
	assert.Len(t, plan.Untouched, 2)
	assert.True(t, repo.byPath(1, "red-shoe.html").IsAutogenerated)
}

func TestReconcileNothingBuiltRedirectsToProductRoute(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))

	plan := reconcileAndApply(t, repo, true, nil)
	require.Len(t, plan.Redirects, 2)
	assert.Empty(t, plan.Untouched)
	for _, path := range []string{"red-shoe.html", "men/red-shoe.html"} {
		got := repo.byPath(1, path)
		assert.Equal(t, catalog.RedirectPermanent, got.RedirectType, path)
		assert.Equal(t, "catalog/product/view/id/42", got.TargetPath, path)
		assert.False(t, got.Metadata.HasCategory(), path)
		assert.False(t, got.IsAutogenerated, path)
	}

	// without history nothing is converted
	repo = newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	plan = reconcileAndApply(t, repo, false, nil)
	assert.Empty(t, plan.Redirects)
	assert.Len(t, plan.Untouched, 2)
}

func TestReconcileRenameBackReclaimsHistory(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	reconcileAndApply(t, repo, true, build(t, "crimson-shoe", menCat))

	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	assert.Empty(t, plan.Discarded)
	assert.Empty(t, plan.Create)
	assert.Len(t, plan.Update, 2)
	require.Len(t, plan.Redirects, 2)

	root := repo.byPath(1, "red-shoe.html")
	assert.Equal(t, catalog.RedirectNone, root.RedirectType)
	assert.Equal(t, "catalog/product/view/id/42", root.TargetPath)
	assert.True(t, root.IsAutogenerated)

	men := repo.byPath(1, "men/red-shoe.html")
	assert.Equal(t, catalog.RedirectNone, men.RedirectType)
	assert.Equal(t, "catalog/product/view/id/42/category/3", men.TargetPath)
	assert.True(t, men.IsAutogenerated)

	assert.Equal(t, "red-shoe.html", repo.byPath(1, "crimson-shoe.html").TargetPath)
	assert.Equal(t, "men/red-shoe.html", repo.byPath(1, "men/crimson-shoe.html").TargetPath)

	for _, path := range []string{"red-shoe.html", "men/red-shoe.html", "crimson-shoe.html", "men/crimson-shoe.html"} {
		final, ok := repo.follow(1, path)
		require.True(t, ok, "redirect loop from %s", path)
		assert.False(t, final.IsRedirect(), path)
	}

	// and the next run is a no-op
	plan = reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	assert.Zero(t, plan.Writes())
}

func TestReconcileRedirectNeverTargetsDiscarded(t *testing.T) {
	repo := newMemRewrites()
	reconcileAndApply(t, repo, true, build(t, "red-shoe", menCat))
	_, _ = repo.Persist(context.Background(), catalog.URLRewrite{
		EntityType: catalog.EntityTypeProduct, EntityID: 42, StoreID: 1,
		RequestPath: "crimson-shoe.html", TargetPath: "cms/page/view/id/9",
	})

	plan := reconcileAndApply(t, repo, true, build(t, "crimson-shoe", menCat))
	require.Len(t, plan.Discarded, 1)
	assert.Equal(t, "crimson-shoe.html", plan.Discarded[0].RequestPath)
	require.Len(t, plan.Redirects, 2)
	for _, rd := range plan.Redirects {
		assert.NotEqual(t, "crimson-shoe.html", rd.TargetPath, rd.RequestPath)
	}

	assert.Equal(t, "catalog/product/view/id/42", repo.byPath(1, "red-shoe.html").TargetPath)
	assert.Equal(t, "men/crimson-shoe.html", repo.byPath(1, "men/red-shoe.html").TargetPath)
	assert.Equal(t, "cms/page/view/id/9", repo.byPath(1, "crimson-shoe.html").TargetPath)
}

func TestReconcileUpdatesChangedTarget(t *testing.T) {
	stale := catalog.URLRewrite{
		EntityType: catalog.EntityTypeProduct, EntityID: 42, StoreID: 1,
		RequestPath: "red-shoe.html", TargetPath: "catalog/product/view/id/41",
		IsAutogenerated: true,
	}
	repo := newMemRewrites(stale)
	plan := reconcileAndApply(t, repo, true, build(t, "red-shoe"))
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "catalog/product/view/id/42", repo.byPath(1, "red-shoe.html").TargetPath)
}

func TestReconcilePlaceholderSkipsLoad(t *testing.T) {
	r := NewReconciler(nil, nil, true, zap.NewNop().Sugar())
	built := []catalog.URLRewrite{{RequestPath: "x.html"}}
	plan, err := r.Reconcile(context.Background(), catalog.ProductRef{SKU: "NEW", EntityID: -1}, 1, built)
	require.NoError(t, err)
	assert.Len(t, plan.Create, 1)
}
