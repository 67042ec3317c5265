package importer

import (
	"context"
	"sort"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/category"
)

// fixture: admin + default (root 2) + de (root 2, German url paths).
func snapshot() *category.Snapshot {
	stores := []catalog.Store{
		{ID: 0, Code: "admin"},
		{ID: 1, Code: "default", WebsiteID: 1, RootCategoryID: 2},
		{ID: 2, Code: "de", WebsiteID: 1, RootCategoryID: 2},
	}
	cats := map[int64][]catalog.Category{
		0: {
			{ID: 1, Name: "Root Catalog"},
			{ID: 2, ParentID: 1, Name: "Default Category", URLPath: "default-category"},
			{ID: 3, ParentID: 2, Name: "Men", URLPath: "men", IsAnchor: true},
			{ID: 4, ParentID: 3, Name: "Shoes", URLPath: "men/shoes"},
			{ID: 6, ParentID: 2, Name: "Women", URLPath: "women"},
		},
		2: {
			{ID: 3, ParentID: 2, Name: "Herren", URLPath: "herren", IsAnchor: true},
			{ID: 4, ParentID: 3, Name: "Schuhe", URLPath: "herren/schuhe"},
		},
	}
	return category.NewSnapshot(stores, cats)
}

type fakeProducts map[string]catalog.Product

func (f fakeProducts) FindBySKU(_ context.Context, sku string, _ int64) (catalog.Product, error) {
	p, ok := f[sku]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type valueKey struct {
	store int64
	value string
}

type entityKey struct {
	store  int64
	entity int64
}

type fakeValues struct {
	byValue  map[valueKey]int64
	byEntity map[entityKey]string
}

func newFakeValues() *fakeValues {
	return &fakeValues{byValue: map[valueKey]int64{}, byEntity: map[entityKey]string{}}
}

func (f *fakeValues) put(store, entity int64, value string) {
	f.byValue[valueKey{store, value}] = entity
	f.byEntity[entityKey{store, entity}] = value
}

func (f *fakeValues) FindByCodeTypeStoreAndValue(_ context.Context, code string, _ int, storeID int64, value string) (*catalog.AttributeValue, error) {
	id, ok := f.byValue[valueKey{storeID, value}]
	if !ok {
		return nil, nil
	}
	return &catalog.AttributeValue{EntityID: id, AttributeCode: code, StoreID: storeID, Value: value}, nil
}

func (f *fakeValues) FindByEntityCodeAndStore(_ context.Context, entityID int64, code string, _ int, storeID int64) (*catalog.AttributeValue, error) {
	v, ok := f.byEntity[entityKey{storeID, entityID}]
	if !ok {
		return nil, nil
	}
	return &catalog.AttributeValue{EntityID: entityID, AttributeCode: code, StoreID: storeID, Value: v}, nil
}

// writeBack stores every resolved url key the way the attribute saver would.
func (f *fakeValues) writeBack(rep *Report, stores map[string]int64) {
	for _, u := range rep.URLKeys {
		f.put(stores[u.StoreViewCode], u.EntityID, u.URLKey)
	}
}

type fakeRelations map[int64][]int64

func (f fakeRelations) FindByProductID(_ context.Context, id int64) ([]int64, error) {
	return f[id], nil
}

// memRewrites is an in-memory url_rewrite table.
type memRewrites struct {
	nextID int64
	rows   map[int64]catalog.URLRewrite
}

func newMemRewrites() *memRewrites { return &memRewrites{rows: map[int64]catalog.URLRewrite{}} }

func (m *memRewrites) FindByEntityTypeAndEntityIDAndStoreID(_ context.Context, entityType string, entityID, storeID int64) ([]catalog.URLRewrite, error) {
	var out []catalog.URLRewrite
	for _, rw := range m.sorted() {
		if rw.EntityType == entityType && rw.EntityID == entityID && rw.StoreID == storeID {
			out = append(out, rw)
		}
	}
	return out, nil
}

func (m *memRewrites) FindByRequestPath(_ context.Context, path string, storeID int64) (*catalog.URLRewrite, error) {
	for _, rw := range m.rows {
		if rw.RequestPath == path && rw.StoreID == storeID {
			cp := rw
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRewrites) Persist(ctx context.Context, rw catalog.URLRewrite) (int64, error) {
	if rw.ID == 0 {
		if cur, _ := m.FindByRequestPath(ctx, rw.RequestPath, rw.StoreID); cur != nil {
			rw.ID = cur.ID
		} else {
			m.nextID++
			rw.ID = m.nextID
		}
	}
	m.rows[rw.ID] = rw
	return rw.ID, nil
}

func (m *memRewrites) sorted() []catalog.URLRewrite {
	out := make([]catalog.URLRewrite, 0, len(m.rows))
	for _, rw := range m.rows {
		out = append(out, rw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// paths lists request paths of one store in id order.
func (m *memRewrites) paths(storeID int64) []string {
	var out []string
	for _, rw := range m.sorted() {
		if rw.StoreID == storeID {
			out = append(out, rw.RequestPath)
		}
	}
	return out
}

type env struct {
	products  fakeProducts
	values    *fakeValues
	rewrites  *memRewrites
	relations fakeRelations
	snap      *category.Snapshot
}

func newEnv() *env {
	return &env{
		products: fakeProducts{
			"SKU-1": {EntityID: 42, SKU: "SKU-1", Visibility: catalog.VisibilityBoth},
			"SKU-2": {EntityID: 43, SKU: "SKU-2", Visibility: catalog.VisibilityBoth},
		},
		values:    newFakeValues(),
		rewrites:  newMemRewrites(),
		relations: fakeRelations{},
		snap:      snapshot(),
	}
}

func (e *env) processor(opts Options) *Processor {
	return NewProcessor(Deps{
		Products:   e.products,
		Values:     e.values,
		Rewrites:   e.rewrites,
		Writer:     e.rewrites,
		Relations:  e.relations,
		Categories: e.snap,
		Roots:      e.snap,
		Stores:     e.snap,
	}, opts, nil)
}

// follow walks redirects from path and returns the row that finally serves
// it.  ok is false when the walk revisits a path.
func (m *memRewrites) follow(storeID int64, path string) (rw catalog.URLRewrite, ok bool) {
	seen := map[string]bool{}
	for {
		if seen[path] {
			return rw, false
		}
		seen[path] = true
		cur, _ := m.FindByRequestPath(context.Background(), path, storeID)
		if cur == nil {
			return rw, true
		}
		rw = *cur
		if !rw.IsRedirect() {
			return rw, true
		}
		path = rw.TargetPath
	}
}
