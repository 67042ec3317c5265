package urlkey

import "sync"

// Context is the per-batch key/value state the url key stage needs beyond
// the database:
//
//   - the admin row's resolved url key per SKU, used as the fallback for
//     later store-view rows of the same product, and
//   - every url key issued in this batch, so two rows of one batch never
//     receive the same key before either has been persisted.
//
// Create one per bunch and pass it in; never share across bunches.
type Context struct {
	mu        sync.Mutex
	adminKeys map[string]string
	reserved  map[reservation]int64
}

type reservation struct {
	storeID int64
	value   string
}

// NewContext returns an empty batch context.
func NewContext() *Context {
	return &Context{
		adminKeys: map[string]string{},
		reserved:  map[reservation]int64{},
	}
}

// RememberAdminKey stores the admin-store url key for sku.
func (c *Context) RememberAdminKey(sku, key string) {
	c.mu.Lock()
	c.adminKeys[sku] = key
	c.mu.Unlock()
}

// AdminKey returns the admin-store url key remembered for sku.
func (c *Context) AdminKey(sku string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.adminKeys[sku]
	return k, ok
}

// Reserve records that entityID owns value in storeID.
func (c *Context) Reserve(storeID int64, value string, entityID int64) {
	c.mu.Lock()
	c.reserved[reservation{storeID, value}] = entityID
	c.mu.Unlock()
}

// Reserved returns the owner of value in storeID, if issued in this batch.
func (c *Context) Reserved(storeID int64, value string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.reserved[reservation{storeID, value}]
	return id, ok
}
