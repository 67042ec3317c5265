// internal/category/snapshot.go
//
// Per-bunch, read-only category and store reference data.
//
// Context
// -------
// Category and store rows do not change while a bunch is imported, yet the
// resolver asks for them once per row and once per ancestor.  LoadSnapshot
// reads everything up front, one query per store view in parallel, and the
// resulting Snapshot answers every CategoryRepository, RootCategoryProvider,
// and StoreProvider call from memory.
//
// The snapshot is passed explicitly to whoever needs it and never mutated
// after load, so concurrent readers need no locking.
//
// Notes
// -----
//   - Category paths are indexed by admin names, e.g. "Default Category/Men".
//     A path without its root prefix is retried under the store's root.
//   - Oxford commas, two spaces after periods.
package category

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// Source feeds LoadSnapshot.  internal/persistence implements it.
type Source interface {
	Stores(ctx context.Context) ([]catalog.Store, error)
	CategoriesForStore(ctx context.Context, storeID int64) ([]catalog.Category, error)
}

// Snapshot is immutable after LoadSnapshot/NewSnapshot returns.
type Snapshot struct {
	stores     map[string]catalog.Store
	storeOrder []catalog.Store
	byStore    map[int64]map[int64]catalog.Category
	paths      map[string]int64
}

// LoadSnapshot reads stores, then categories for every store in parallel.
func LoadSnapshot(ctx context.Context, src Source) (*Snapshot, error) {
	stores, err := src.Stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}

	ids := []int64{catalog.AdminStoreID}
	for _, s := range stores {
		if !s.IsAdmin() {
			ids = append(ids, s.ID)
		}
	}

	results := make([][]catalog.Category, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			cats, err := src.CategoriesForStore(gctx, id)
			if err != nil {
				return fmt.Errorf("load categories for store %d: %w", id, err)
			}
			results[i] = cats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byStore := make(map[int64][]catalog.Category, len(ids))
	for i, id := range ids {
		byStore[id] = results[i]
	}
	return NewSnapshot(stores, byStore), nil
}

// NewSnapshot builds a Snapshot from already loaded rows.  byStore must hold
// the admin (store 0) categories; other stores may list only the subset
// whose values differ.
func NewSnapshot(stores []catalog.Store, byStore map[int64][]catalog.Category) *Snapshot {
	s := &Snapshot{
		stores:  make(map[string]catalog.Store, len(stores)),
		byStore: make(map[int64]map[int64]catalog.Category, len(byStore)),
		paths:   map[string]int64{},
	}

	roots := map[int64]bool{}
	for _, st := range stores {
		s.stores[st.Code] = st
		s.storeOrder = append(s.storeOrder, st)
		if st.RootCategoryID != 0 {
			roots[st.RootCategoryID] = true
		}
	}
	sort.Slice(s.storeOrder, func(i, j int) bool { return s.storeOrder[i].ID < s.storeOrder[j].ID })

	for storeID, cats := range byStore {
		m := make(map[int64]catalog.Category, len(cats))
		for _, c := range cats {
			c.IsRoot = roots[c.ID]
			m[c.ID] = c
		}
		s.byStore[storeID] = m
	}

	admin := s.byStore[catalog.AdminStoreID]
	for id := range admin {
		if p := s.namePath(admin, id); p != "" {
			s.paths[p] = id
		}
	}
	return s
}

// namePath joins admin names from below the absolute root down to id.
func (s *Snapshot) namePath(admin map[int64]catalog.Category, id int64) string {
	var names []string
	for cur, depth := id, 0; cur != 0 && cur != catalog.AbsoluteRootCategoryID; depth++ {
		if depth > DefaultMaxDepth {
			return ""
		}
		c, ok := admin[cur]
		if !ok {
			return ""
		}
		names = append(names, c.Name)
		cur = c.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// StoreByCode implements catalog.StoreProvider.
func (s *Snapshot) StoreByCode(_ context.Context, code string) (catalog.Store, error) {
	if code == "" {
		code = catalog.AdminStoreCode
	}
	st, ok := s.stores[code]
	if !ok {
		return catalog.Store{}, fmt.Errorf("store view %q: %w", code, catalog.ErrNotFound)
	}
	return st, nil
}

// Stores implements catalog.StoreProvider.
func (s *Snapshot) Stores(context.Context) ([]catalog.Store, error) {
	out := make([]catalog.Store, len(s.storeOrder))
	copy(out, s.storeOrder)
	return out, nil
}

// GetRootCategory implements catalog.RootCategoryProvider.  The admin store
// has no root of its own and answers with the absolute root.
func (s *Snapshot) GetRootCategory(ctx context.Context, storeViewCode string) (catalog.Category, error) {
	st, err := s.StoreByCode(ctx, storeViewCode)
	if err != nil {
		return catalog.Category{}, err
	}
	if st.RootCategoryID == 0 {
		return catalog.Category{ID: catalog.AbsoluteRootCategoryID, IsRoot: true}, nil
	}
	return s.lookup(st.ID, st.RootCategoryID)
}

// FindByID implements catalog.CategoryRepository with admin values.
func (s *Snapshot) FindByID(_ context.Context, id int64) (catalog.Category, error) {
	return s.lookup(catalog.AdminStoreID, id)
}

// FindByPath implements catalog.CategoryRepository.
func (s *Snapshot) FindByPath(ctx context.Context, path, storeViewCode string) (catalog.Category, error) {
	st, err := s.StoreByCode(ctx, storeViewCode)
	if err != nil {
		return catalog.Category{}, err
	}
	id, ok := s.resolvePath(st, path)
	if !ok {
		return catalog.Category{}, fmt.Errorf("category path %q: %w", path, catalog.ErrNotFound)
	}
	return s.lookup(st.ID, id)
}

// ForStoreView implements StoreScoped.
func (s *Snapshot) ForStoreView(code string) catalog.CategoryRepository {
	st, ok := s.stores[code]
	if !ok {
		return s
	}
	return storeView{snap: s, storeID: st.ID}
}

func (s *Snapshot) resolvePath(st catalog.Store, path string) (int64, bool) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if id, ok := s.paths[p]; ok {
		return id, true
	}
	if st.RootCategoryID == 0 {
		return 0, false
	}
	root, ok := s.byStore[catalog.AdminStoreID][st.RootCategoryID]
	if !ok {
		return 0, false
	}
	id, ok := s.paths[root.Name+"/"+p]
	return id, ok
}

// lookup prefers store-level values and falls back to admin values.
func (s *Snapshot) lookup(storeID, id int64) (catalog.Category, error) {
	if c, ok := s.byStore[storeID][id]; ok {
		return c, nil
	}
	if c, ok := s.byStore[catalog.AdminStoreID][id]; ok {
		return c, nil
	}
	return catalog.Category{}, fmt.Errorf("category %d: %w", id, catalog.ErrNotFound)
}

type storeView struct {
	snap    *Snapshot
	storeID int64
}

func (v storeView) FindByID(_ context.Context, id int64) (catalog.Category, error) {
	return v.snap.lookup(v.storeID, id)
}

func (v storeView) FindByPath(ctx context.Context, path, storeViewCode string) (catalog.Category, error) {
	return v.snap.FindByPath(ctx, path, storeViewCode)
}
