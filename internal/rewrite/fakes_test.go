package rewrite

import (
	"context"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// memRewrites is an in-memory url_rewrite table keyed by (store, path).
type memRewrites struct {
	nextID int64
	rows   map[int64]catalog.URLRewrite
}

func newMemRewrites(seed ...catalog.URLRewrite) *memRewrites {
	m := &memRewrites{rows: map[int64]catalog.URLRewrite{}}
	for _, rw := range seed {
		_, _ = m.Persist(context.Background(), rw)
	}
	return m
}

func (m *memRewrites) FindByEntityTypeAndEntityIDAndStoreID(_ context.Context, entityType string, entityID, storeID int64) ([]catalog.URLRewrite, error) {
	var out []catalog.URLRewrite
	for id := int64(1); id <= m.nextID; id++ {
		rw, ok := m.rows[id]
		if ok && rw.EntityType == entityType && rw.EntityID == entityID && rw.StoreID == storeID {
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

// byPath returns the stored row for path in store, or the zero value.
func (m *memRewrites) byPath(storeID int64, path string) catalog.URLRewrite {
	rw, _ := m.FindByRequestPath(context.Background(), path, storeID)
	if rw == nil {
		return catalog.URLRewrite{}
	}
	return *rw
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
