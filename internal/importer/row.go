// internal/importer/row.go
//
// Import rows and bunch files.
//
// Context
// -------
// A bunch is the already-mapped slice of an import file: one YAML sequence
// item per CSV line.  Only the columns the URL pipeline reads are kept.
//
//	- sku: SKU-1
//	  store_view_code: ""          # admin row
//	  name: Red Shoe
//	  url_key: ""
//	  categories: [Default Category/Men/Shoes]
//	  visibility: Catalog, Search
//
// Notes
// -----
//   - Line numbers come from the YAML node, so warnings point at the bunch
//     file rather than the original CSV.
//   - Oxford commas, two spaces after periods.
package importer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// Column names used in warnings and Result.Columns.
const (
	ColumnSKU           = "sku"
	ColumnStoreViewCode = "store_view_code"
	ColumnURLKey        = "url_key"
	ColumnName          = "name"
	ColumnCategories    = "categories"
	ColumnVisibility    = "visibility"
)

// Row is one product row of a bunch.
type Row struct {
	File string `yaml:"-"`
	Line int    `yaml:"-"`

	SKU           string   `yaml:"sku"`
	StoreViewCode string   `yaml:"store_view_code"`
	Name          string   `yaml:"name"`
	URLKey        string   `yaml:"url_key"`
	Categories    []string `yaml:"categories"`
	Visibility    string   `yaml:"visibility"`
}

// LoadBunch reads a YAML bunch file.
func LoadBunch(path string) ([]Row, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bunch: %w", err)
	}
	return ParseBunch(path, raw)
}

// ParseBunch decodes a YAML sequence of rows.  file is only used for
// positions.
func ParseBunch(file string, raw []byte) ([]Row, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse bunch %s: %w", file, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parse bunch %s: line %d: expected a list of rows", file, seq.Line)
	}

	rows := make([]Row, 0, len(seq.Content))
	for _, n := range seq.Content {
		var r Row
		if err := n.Decode(&r); err != nil {
			return nil, fmt.Errorf("parse bunch %s: line %d: %w", file, n.Line, err)
		}
		r.File, r.Line = file, n.Line
		if strings.TrimSpace(r.SKU) == "" {
			return nil, fmt.Errorf("parse bunch %s: line %d: sku is required", file, n.Line)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// ParseVisibility accepts the Magento export labels or the numeric value.
// Blank input gives VisibilityUnset.
func ParseVisibility(s string) (catalog.Visibility, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return catalog.VisibilityUnset, nil
	case "not visible individually":
		return catalog.VisibilityNotVisibleIndividually, nil
	case "catalog":
		return catalog.VisibilityInCatalog, nil
	case "search":
		return catalog.VisibilityInSearch, nil
	case "catalog, search", "catalog,search":
		return catalog.VisibilityBoth, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 4 {
		return catalog.VisibilityUnset, fmt.Errorf("unknown visibility %q", s)
	}
	return catalog.Visibility(n), nil
}
