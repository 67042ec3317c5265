package catalog

import "sync/atomic"

// PlaceholderAllocator hands out negative entity ids for products that do
// not exist yet.  Ids start at -1 and count down, so they never clash with
// real AUTO_INCREMENT values.  Safe for concurrent use.
type PlaceholderAllocator struct {
	next atomic.Int64
}

// Next returns a fresh placeholder id.
func (a *PlaceholderAllocator) Next() int64 { return a.next.Add(-1) }
