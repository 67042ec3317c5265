// internal/rewrite/path.go
//
// Request-path helpers.
//
// • JoinRequestPath(parent, leaf) ─ joins a category url path and a product
//   url key with a single “/”.  Request paths are stored without a leading
//   slash, unlike router paths.
//
// Notes
// -----
// • Blank segments are dropped, so a root entry is just the leaf.

package rewrite

import "strings"

// DefaultSuffix is the stock product URL suffix.
const DefaultSuffix = ".html"

// JoinRequestPath joins parent + leaf with no leading slash and no duplicate
// separators.
func JoinRequestPath(parent, leaf string) string {
	parent = strings.Trim(parent, "/")
	leaf = strings.Trim(leaf, "/")

	switch {
	case parent == "":
		return leaf
	case leaf == "":
		return parent
	default:
		return parent + "/" + leaf
	}
}
