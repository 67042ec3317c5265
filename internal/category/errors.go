package category

import (
	"errors"
	"fmt"
)

// ErrDepthExceeded reports a parent chain longer than the resolver's bound,
// which in practice means the parent pointers form a cycle.
var ErrDepthExceeded = errors.New("category parent chain too deep")

// UnresolvableCategoryPathError is returned (strict mode) or collected
// (non-strict mode) when a row references a category path that does not
// exist for the store view.
type UnresolvableCategoryPathError struct {
	Path          string
	StoreViewCode string
	Err           error
}

func (e *UnresolvableCategoryPathError) Error() string {
	return fmt.Sprintf("can't resolve category path %q for store view %q: %v",
		e.Path, e.StoreViewCode, e.Err)
}

func (e *UnresolvableCategoryPathError) Unwrap() error { return e.Err }
