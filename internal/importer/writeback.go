// internal/importer/writeback.go
//
// url_key write-back.
//
// Resolved keys travel in Report.URLKeys.  When import.write_url_keys is on,
// the CLI hands them to WriteURLKeys, which stores each one in the varchar
// table of its store.  Placeholder entities are skipped: there is no row to
// attach the value to until the product exists.
package importer

import (
	"context"
	"fmt"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// URLKeySaver persists one url_key value.  persistence.Store implements it.
type URLKeySaver interface {
	SaveURLKey(ctx context.Context, entityID int64, entityTypeID int, storeID int64, value string) error
}

// WriteURLKeys saves every non-placeholder update and returns how many were
// written.
func WriteURLKeys(ctx context.Context, stores catalog.StoreProvider, saver URLKeySaver,
	entityTypeID int, updates []URLKeyUpdate) (int, error) {

	written := 0
	for _, u := range updates {
		if u.EntityID < 0 {
			continue
		}
		st, err := stores.StoreByCode(ctx, u.StoreViewCode)
		if err != nil {
			return written, fmt.Errorf("url key of %s: store view %q: %w", u.SKU, u.StoreViewCode, err)
		}
		if err := saver.SaveURLKey(ctx, u.EntityID, entityTypeID, st.ID, u.URLKey); err != nil {
			return written, fmt.Errorf("url key of %s: %w", u.SKU, err)
		}
		written++
	}
	return written, nil
}
