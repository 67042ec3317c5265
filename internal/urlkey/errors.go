package urlkey

import (
	"errors"
	"fmt"
)

// ErrCollisionResolutionExhausted means the probe loop hit its bound.  It
// cannot happen with sane storage and is always fatal.
var ErrCollisionResolutionExhausted = errors.New("url key collision resolution exhausted")

// MissingURLSourceError is returned when neither an explicit url key, a name,
// nor an admin fallback yields a usable key.  Fatal in the admin store,
// recoverable in store views.
type MissingURLSourceError struct {
	SKU           string
	StoreViewCode string
	Admin         bool
	Reason        string
}

func (e *MissingURLSourceError) Error() string {
	return fmt.Sprintf("no url key source for sku %q in store view %q: %s",
		e.SKU, e.StoreViewCode, e.Reason)
}

// Fatal reports whether the error must abort the row in any mode.
func (e *MissingURLSourceError) Fatal() bool { return e.Admin }
