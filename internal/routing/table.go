// internal/routing/table.go
//
// Per-store rewrite tables for the serve front door.
//
// Context
// -------
// A Table maps request paths (no leading slash, e.g. "men/red-shoe.html") to
// the url_rewrite row that owns them for one store view.  Tables keeps at
// most MaxTables of them in an LRU and reloads a table once it is older than
// its TTL.  Concurrent misses for the same store share one load through
// singleflight, so a cold cache never stampedes the database.
//
// Notes
// -----
// • Loader is declared here, not in catalog, because only the front door
//   reads whole stores at once.
// • Oxford commas, two spaces after periods.

package routing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/adept-urlrewrite/internal/cache"
	"github.com/yanizio/adept-urlrewrite/internal/catalog"
	"github.com/yanizio/adept-urlrewrite/internal/metrics"
)

// Loader is the minimal read surface the front door needs.
type Loader interface {
	StoreByCode(ctx context.Context, code string) (catalog.Store, error)
	FindByStoreID(ctx context.Context, storeID int64) ([]catalog.URLRewrite, error)
}

// -----------------------------------------------------------------------------
// Table
// -----------------------------------------------------------------------------

// Table is an immutable request path index for one store view.
type Table struct {
	Store    catalog.Store
	LoadedAt time.Time
	byPath   map[string]catalog.URLRewrite
}

// NewTable indexes rows by request path.  Later rows win on duplicates.
func NewTable(store catalog.Store, rows []catalog.URLRewrite, loadedAt time.Time) *Table {
	t := &Table{Store: store, LoadedAt: loadedAt, byPath: make(map[string]catalog.URLRewrite, len(rows))}
	for _, rw := range rows {
		t.byPath[rw.RequestPath] = rw
	}
	return t
}

// Lookup finds the rewrite for path.  A leading slash is ignored.
func (t *Table) Lookup(path string) (catalog.URLRewrite, bool) {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	rw, ok := t.byPath[path]
	return rw, ok
}

// Len reports the number of indexed request paths.
func (t *Table) Len() int { return len(t.byPath) }

// -----------------------------------------------------------------------------
// Tables
// -----------------------------------------------------------------------------

// Tables caches one Table per store code.  Zero value is unusable; construct
// with NewTables.
type Tables struct {
	loader Loader
	ttl    time.Duration
	lru    *cache.LRU[string, *Table]
	group  singleflight.Group
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewTables returns a cache holding at most maxTables stores.  ttl <= 0
// keeps tables until they are evicted or invalidated.
func NewTables(loader Loader, ttl time.Duration, maxTables int, log *zap.SugaredLogger) *Tables {
	if log == nil {
		log = zap.S()
	}
	return &Tables{
		loader: loader,
		ttl:    ttl,
		lru:    cache.New[string, *Table](maxTables),
		log:    log,
		now:    time.Now,
	}
}

// Get returns a fresh table for code, loading it when missing or stale.
func (ts *Tables) Get(ctx context.Context, code string) (*Table, error) {
	if t, ok := ts.lru.Get(code); ok && !ts.stale(t) {
		return t, nil
	}

	v, err, _ := ts.group.Do(code, func() (any, error) {
		return ts.load(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Invalidate drops the cached table for code so the next Get reloads it.
func (ts *Tables) Invalidate(code string) {
	ts.lru.Remove(code)
	metrics.ActiveRewriteTables.Set(float64(ts.lru.Len()))
}

func (ts *Tables) stale(t *Table) bool {
	return ts.ttl > 0 && ts.now().Sub(t.LoadedAt) > ts.ttl
}

func (ts *Tables) load(ctx context.Context, code string) (*Table, error) {
	store, err := ts.loader.StoreByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", code, err)
	}
	rows, err := ts.loader.FindByStoreID(ctx, store.ID)
	if err != nil {
		return nil, fmt.Errorf("rewrites of store %q: %w", code, err)
	}

	t := NewTable(store, rows, ts.now())
	if ts.lru.Add(code, t) {
		ts.log.Debugw("rewrite table evicted", "max_tables", ts.lru.Len())
	}
	metrics.ActiveRewriteTables.Set(float64(ts.lru.Len()))
	ts.log.Debugw("rewrite table loaded", "store", code, "paths", t.Len())
	return t, nil
}
