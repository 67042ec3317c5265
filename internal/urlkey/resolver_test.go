package urlkey

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

var defaultStore = catalog.Store{ID: 1, Code: "default", RootCategoryID: 2}
var adminStore = catalog.Store{ID: 0, Code: "admin"}

func scope(storeID int64) Scope { return Scope{EntityTypeID: ProductEntityTypeID, StoreID: storeID} }

func TestMakeUniqueScenarios(t *testing.T) {
	ctx := context.Background()
	values := newFakeValues()
	r := NewResolver(values, nil, 0, zap.NewNop().Sugar())

	first := catalog.ProductRef{SKU: "SKU-1", EntityID: 1}
	key, err := r.MakeUnique(ctx, first, "red-shoe", scope(1))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe", key)
	values.put(1, first.EntityID, key)

	// second import of the same product keeps its key
	key, err = r.MakeUnique(ctx, first, "red-shoe", scope(1))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe", key)

	// a different product with the same name gets the next slot
	other := catalog.ProductRef{SKU: "SKU-3", EntityID: 3}
	key, err = r.MakeUnique(ctx, other, "red-shoe", scope(1))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe-1", key)
	values.put(1, other.EntityID, key)

	// re-importing the second product keeps the numbered variant
	key, err = r.MakeUnique(ctx, other, "red-shoe", scope(1))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe-1", key)

	// other stores are a separate scope
	key, err = r.MakeUnique(ctx, other, "red-shoe", scope(2))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe", key)
}

func TestMakeUniqueConsultsReservations(t *testing.T) {
	batch := NewContext()
	batch.Reserve(1, "red-shoe", 1)
	r := NewResolver(newFakeValues(), batch, 0, zap.NewNop().Sugar())

	key, err := r.MakeUnique(context.Background(), catalog.ProductRef{SKU: "B", EntityID: 2}, "red-shoe", scope(1))
	require.NoError(t, err)
	assert.Equal(t, "red-shoe-1", key)
}

// For random existing value sets the result is never a value held by
// another entity.
func TestMakeUniqueNeverTakesForeignValue(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()
	self := catalog.ProductRef{SKU: "S", EntityID: 100}

	for i := 0; i < 200; i++ {
		values := newFakeValues()
		n := rng.Intn(8)
		for c := 0; c < n; c++ {
			owner := int64(rng.Intn(3) + 99) // 99, 100 (self), or 101
			values.put(1, owner, Suffix("k", c))
		}
		// sprinkle a few values beyond the contiguous run
		for j := 0; j < 2; j++ {
			c := n + 1 + rng.Intn(4)
			values.put(1, int64(rng.Intn(3)+99), Suffix("k", c))
		}

		r := NewResolver(values, nil, 0, zap.NewNop().Sugar())
		got, err := r.MakeUnique(ctx, self, "k", scope(1))
		require.NoError(t, err)

		owner, taken := values.byValue[valueKey{1, got}]
		if taken {
			assert.Equal(t, self.EntityID, owner, fmt.Sprintf("round %d: %q held by %d", i, got, owner))
		}
	}
}

func TestMakeUniqueExhausted(t *testing.T) {
	values := newFakeValues()
	for c := 0; c < 10; c++ {
		values.put(1, 1, Suffix("k", c))
	}
	r := NewResolver(values, nil, 5, zap.NewNop().Sugar())
	_, err := r.MakeUnique(context.Background(), catalog.ProductRef{EntityID: 2}, "k", scope(1))
	assert.ErrorIs(t, err, ErrCollisionResolutionExhausted)
}

func newDeriver(values *fakeValues, batch *Context, fromName bool) *Deriver {
	r := NewResolver(values, batch, 0, zap.NewNop().Sugar())
	return NewDeriver(r, values, batch, DeriverOptions{UpdateURLKeyFromName: fromName})
}

func TestDeriveSources(t *testing.T) {
	ctx := context.Background()
	p := catalog.ProductRef{SKU: "SKU-1", EntityID: 1}

	t.Run("explicit column wins", func(t *testing.T) {
		d := newDeriver(newFakeValues(), NewContext(), true)
		got, err := d.Derive(ctx, Input{Entity: p, Store: defaultStore, URLKey: "Custom Key", Name: "Red Shoe"})
		require.NoError(t, err)
		assert.Equal(t, "custom-key", got.Key)
		assert.Equal(t, SourceColumn, got.Source)
		assert.Equal(t, "Custom Key", got.Candidate.RawValue)
	})

	t.Run("name", func(t *testing.T) {
		d := newDeriver(newFakeValues(), NewContext(), true)
		got, err := d.Derive(ctx, Input{Entity: p, Store: defaultStore, Name: "Red Shoe"})
		require.NoError(t, err)
		assert.Equal(t, "red-shoe", got.Key)
		assert.Equal(t, SourceName, got.Source)
	})

	t.Run("persisted key kept when not updating from name", func(t *testing.T) {
		values := newFakeValues()
		values.put(1, 1, "old-shoe")
		d := newDeriver(values, NewContext(), false)
		got, err := d.Derive(ctx, Input{Entity: p, Store: defaultStore, Name: "Red Shoe", Existing: true})
		require.NoError(t, err)
		assert.Equal(t, "old-shoe", got.Key)
		assert.Equal(t, SourcePersisted, got.Source)
	})

	t.Run("name replaces persisted key when updating from name", func(t *testing.T) {
		values := newFakeValues()
		values.put(1, 1, "old-shoe")
		d := newDeriver(values, NewContext(), true)
		got, err := d.Derive(ctx, Input{Entity: p, Store: defaultStore, Name: "Red Shoe", Existing: true})
		require.NoError(t, err)
		assert.Equal(t, "red-shoe", got.Key)
	})

	t.Run("store view falls back to admin row", func(t *testing.T) {
		batch := NewContext()
		d := newDeriver(newFakeValues(), batch, true)
		admin, err := d.Derive(ctx, Input{Entity: p, Store: adminStore, Name: "Red Shoe"})
		require.NoError(t, err)
		k, ok := batch.AdminKey("SKU-1")
		require.True(t, ok)
		assert.Equal(t, admin.Key, k)

		got, err := d.Derive(ctx, Input{Entity: p, Store: defaultStore})
		require.NoError(t, err)
		assert.Equal(t, "red-shoe", got.Key)
		assert.Equal(t, SourceAdmin, got.Source)
	})
}

func TestDeriveMissingSource(t *testing.T) {
	ctx := context.Background()
	p := catalog.ProductRef{SKU: "SKU-9", EntityID: 9}
	d := newDeriver(newFakeValues(), NewContext(), true)

	_, err := d.Derive(ctx, Input{Entity: p, Store: adminStore})
	var merr *MissingURLSourceError
	require.ErrorAs(t, err, &merr)
	assert.True(t, merr.Fatal())

	_, err = d.Derive(ctx, Input{Entity: p, Store: defaultStore, Name: "!!!"})
	require.ErrorAs(t, err, &merr)
	assert.False(t, merr.Fatal())
	assert.Equal(t, "default", merr.StoreViewCode)
}

func TestDeriveReservesWithinBatch(t *testing.T) {
	ctx := context.Background()
	d := newDeriver(newFakeValues(), NewContext(), true)

	a, err := d.Derive(ctx, Input{Entity: catalog.ProductRef{SKU: "A", EntityID: 1}, Store: defaultStore, Name: "Red Shoe"})
	require.NoError(t, err)
	b, err := d.Derive(ctx, Input{Entity: catalog.ProductRef{SKU: "B", EntityID: -1}, Store: defaultStore, Name: "Red Shoe"})
	require.NoError(t, err)

	assert.Equal(t, "red-shoe", a.Key)
	assert.Equal(t, "red-shoe-1", b.Key)
}
