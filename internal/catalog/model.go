// internal/catalog/model.go
//
// Domain model shared by every stage of the URL pipeline.
//
// Context
// -------
// The importer hands one product row at a time to the slug normalizer, the
// url-key resolver, the category path resolver, the rewrite builder, and
// finally the reconciler.  Each stage speaks in terms of the small structs
// below, which mirror the Magento 2 tables they are read from or written to:
//
//   - Category    ─ catalog_category_entity plus its url_path, name, and
//     is_anchor EAV values for one store view.
//   - Store       ─ one store view joined with its store_group root.
//   - URLRewrite  ─ one row in url_rewrite.
//
// Notes
// -----
//   - Category values are read-only reference data for the whole bunch.
//   - URLRewrite is the only struct this subsystem mutates or persists.
//   - Oxford commas, two spaces after periods.
package catalog

import "strconv"

// EntityTypeProduct is the url_rewrite.entity_type value for products.
const EntityTypeProduct = "product"

// AttributeCodeURLKey is the EAV attribute that carries the url key.
const AttributeCodeURLKey = "url_key"

// Store view codes and ids with special meaning.
const (
	AdminStoreCode = "admin"
	AdminStoreID   = int64(0)
)

// AbsoluteRootCategoryID is the tree root above every store root category.
const AbsoluteRootCategoryID = int64(1)

// Redirect types stored in url_rewrite.redirect_type.
const (
	RedirectNone      = 0
	RedirectPermanent = 301
	RedirectTemporary = 302
)

// ProductRef identifies the product a row belongs to.  EntityID is negative
// when the product has not been persisted yet (see PlaceholderAllocator).
type ProductRef struct {
	SKU      string
	EntityID int64
}

// IsPlaceholder reports whether EntityID was reverse-allocated.
func (p ProductRef) IsPlaceholder() bool { return p.EntityID < 0 }

// Category is one node of the category tree as seen from a store view.
type Category struct {
	ID       int64  `db:"entity_id"`
	ParentID int64  `db:"parent_id"`
	Path     string `db:"path"` // id path, e.g. "1/2/5"
	Name     string `db:"name"`
	URLPath  string `db:"url_path"`
	IsAnchor bool   `db:"is_anchor"`
	IsRoot   bool   `db:"-"` // root category of at least one store
}

// Store is a store view together with the root category of its group.
type Store struct {
	ID             int64  `db:"store_id"`
	Code           string `db:"code"`
	WebsiteID      int64  `db:"website_id"`
	RootCategoryID int64  `db:"root_category_id"`
}

// IsAdmin reports whether the store is the admin (default values) store.
func (s Store) IsAdmin() bool { return s.ID == AdminStoreID }

// URLKeyCandidate tracks one url key through normalization for a store.
type URLKeyCandidate struct {
	RawValue       string
	NormalizedSlug string
	StoreID        int64
}

// Metadata is the JSON blob stored in url_rewrite.metadata.
type Metadata struct {
	CategoryID *int64 `json:"category_id,omitempty"`
}

// HasCategory reports whether the metadata names a category.
func (m Metadata) HasCategory() bool { return m.CategoryID != nil }

// CategoryKey returns the category id or 0 when absent.
func (m Metadata) CategoryKey() int64 {
	if m.CategoryID == nil {
		return 0
	}
	return *m.CategoryID
}

// CategoryMetadata builds Metadata for one category id.
func CategoryMetadata(id int64) Metadata { return Metadata{CategoryID: &id} }

// URLRewrite mirrors one row in url_rewrite.  The identity inside a store is
// RequestPath; ID is zero until the row has been persisted.
type URLRewrite struct {
	ID              int64
	EntityType      string
	EntityID        int64
	RequestPath     string
	TargetPath      string
	StoreID         int64
	RedirectType    int
	IsAutogenerated bool
	Metadata        Metadata
}

// IsRedirect reports whether the rewrite answers with an HTTP redirect.
func (r URLRewrite) IsRedirect() bool { return r.RedirectType != RedirectNone }

// SameContent compares everything except the database identity.
func (r URLRewrite) SameContent(o URLRewrite) bool {
	return r.EntityType == o.EntityType &&
		r.EntityID == o.EntityID &&
		r.RequestPath == o.RequestPath &&
		r.TargetPath == o.TargetPath &&
		r.StoreID == o.StoreID &&
		r.RedirectType == o.RedirectType &&
		r.IsAutogenerated == o.IsAutogenerated &&
		r.Metadata.CategoryKey() == o.Metadata.CategoryKey()
}

// AttributeValue is one varchar EAV value.
type AttributeValue struct {
	ValueID       int64  `db:"value_id"`
	EntityID      int64  `db:"entity_id"`
	AttributeCode string `db:"attribute_code"`
	StoreID       int64  `db:"store_id"`
	Value         string `db:"value"`
}

// Visibility mirrors the product visibility attribute.
type Visibility int

const (
	VisibilityUnset                  Visibility = 0
	VisibilityNotVisibleIndividually Visibility = 1
	VisibilityInCatalog              Visibility = 2
	VisibilityInSearch               Visibility = 3
	VisibilityBoth                   Visibility = 4
)

// Visible reports whether the product gets its own URL.  An unknown value
// counts as visible.
func (v Visibility) Visible() bool { return v != VisibilityNotVisibleIndividually }

// Product is the subset of catalog_product_entity the pipeline reads.
type Product struct {
	EntityID   int64      `db:"entity_id"`
	SKU        string     `db:"sku"`
	Visibility Visibility `db:"visibility"`
}

// ProductTargetPath is the controller route for a product.
func ProductTargetPath(entityID int64) string {
	return "catalog/product/view/id/" + strconv.FormatInt(entityID, 10)
}

// ProductCategoryTargetPath is the controller route for a product shown in
// a category.
func ProductCategoryTargetPath(entityID, categoryID int64) string {
	return ProductTargetPath(entityID) + "/category/" + strconv.FormatInt(categoryID, 10)
}
