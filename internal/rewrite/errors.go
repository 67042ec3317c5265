package rewrite

import "fmt"

// MissingCategoryURLPathError means a non-root rewrite could not be built
// because the category has no url_path.  The row's other rewrites are
// unaffected.
type MissingCategoryURLPathError struct {
	CategoryID int64
	SKU        string
	StoreID    int64
}

func (e *MissingCategoryURLPathError) Error() string {
	return fmt.Sprintf("category %d has no url_path in store %d, skipping rewrite for sku %q",
		e.CategoryID, e.StoreID, e.SKU)
}
