package importer

import (
	"errors"
	"fmt"

	"github.com/yanizio/adept-urlrewrite/internal/category"
	"github.com/yanizio/adept-urlrewrite/internal/rewrite"
	"github.com/yanizio/adept-urlrewrite/internal/urlkey"
)

// Warning kinds, also the "kind" label of metrics.WarningsTotal.
const (
	KindUnresolvableCategory   = "unresolvable_category"
	KindMissingURLSource       = "missing_url_source"
	KindMissingCategoryURLPath = "missing_category_url_path"
	KindPlaceholder            = "placeholder_entity"
)

// Warning is a recoverable problem attached to one row.
type Warning struct {
	File          string `yaml:"file,omitempty"`
	Line          int    `yaml:"line,omitempty"`
	Column        string `yaml:"column,omitempty"`
	SKU           string `yaml:"sku"`
	StoreViewCode string `yaml:"store_view_code"`
	Kind          string `yaml:"kind"`
	Message       string `yaml:"message"`
}

// RowError is a fatal row problem with its position.
type RowError struct {
	File   string
	Line   int
	SKU    string
	Column string
	Err    error
}

func (e *RowError) Error() string {
	pos := e.File
	if e.Line > 0 {
		pos = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s: sku %q, column %s: %v", pos, e.SKU, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: sku %q: %v", pos, e.SKU, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// recoverable reports whether err may be downgraded to a warning in
// non-strict mode, and under which kind and column.
func recoverable(err error) (kind, column string, ok bool) {
	var (
		cat     *category.UnresolvableCategoryPathError
		missing *urlkey.MissingURLSourceError
		noPath  *rewrite.MissingCategoryURLPathError
	)
	switch {
	case errors.As(err, &cat):
		return KindUnresolvableCategory, ColumnCategories, true
	case errors.As(err, &missing):
		return KindMissingURLSource, ColumnURLKey, !missing.Fatal()
	case errors.As(err, &noPath):
		return KindMissingCategoryURLPath, ColumnCategories, true
	}
	return "", "", false
}

// columnOf picks the column to blame for a fatal error.
func columnOf(err error) string {
	if errors.Is(err, urlkey.ErrCollisionResolutionExhausted) {
		return ColumnURLKey
	}
	_, col, _ := recoverable(err)
	return col
}
