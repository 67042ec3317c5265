package persistence

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

const productVarcharTable = "catalog_product_entity_varchar"

const productSQL = `
SELECT e.entity_id, e.sku, COALESCE(vs.value, va.value, 0) AS visibility
  FROM catalog_product_entity e
  LEFT JOIN catalog_product_entity_int va
         ON va.entity_id = e.entity_id AND va.attribute_id = ? AND va.store_id = 0
  LEFT JOIN catalog_product_entity_int vs
         ON vs.entity_id = e.entity_id AND vs.attribute_id = ? AND vs.store_id = ?
 WHERE e.sku = ?`

// FindBySKU implements catalog.ProductRepository.  Visibility is the store
// value when one exists, else the admin value.
func (s *Store) FindBySKU(ctx context.Context, sku string, storeID int64) (catalog.Product, error) {
	visID, err := s.typedAttributeID(ctx, "visibility", EntityTypeProduct)
	if err != nil {
		return catalog.Product{}, err
	}
	var p catalog.Product
	if err := s.db.GetContext(ctx, &p, productSQL, visID, visID, storeID, sku); err != nil {
		return catalog.Product{}, notFound(err, "product %q", sku)
	}
	return p, nil
}

// FindByProductID implements catalog.ProductCategoryRelationRepository.
func (s *Store) FindByProductID(ctx context.Context, productID int64) ([]int64, error) {
	sb := sqlbuilder.MySQL.NewSelectBuilder()
	sb.Select("category_id").From("catalog_category_product")
	sb.Where(sb.Equal("product_id", productID))
	sb.OrderBy("position", "category_id")

	q, args := sb.Build()
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("category relations of product %d: %w", productID, err)
	}
	return ids, nil
}

func (s *Store) findValue(ctx context.Context, code string, entityTypeID int, where func(sb *sqlbuilder.SelectBuilder) string) (*catalog.AttributeValue, error) {
	attrID, err := s.attributeID(ctx, code, entityTypeID)
	if err != nil {
		return nil, err
	}
	sb := sqlbuilder.MySQL.NewSelectBuilder()
	sb.Select("value_id", "entity_id", "store_id", "value").From(productVarcharTable)
	sb.Where(sb.Equal("attribute_id", attrID), where(sb))
	sb.OrderBy("value_id")

	q, args := sb.Build()
	var rows []catalog.AttributeValue
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("%s value: %w", code, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	v := rows[0]
	v.AttributeCode = code
	return &v, nil
}

// FindByCodeTypeStoreAndValue implements catalog.VarcharAttributeRepository.
func (s *Store) FindByCodeTypeStoreAndValue(ctx context.Context, code string, entityTypeID int, storeID int64, value string) (*catalog.AttributeValue, error) {
	return s.findValue(ctx, code, entityTypeID, func(sb *sqlbuilder.SelectBuilder) string {
		return sb.And(sb.Equal("store_id", storeID), sb.Equal("value", value))
	})
}

// FindByEntityCodeAndStore implements catalog.VarcharAttributeRepository.
func (s *Store) FindByEntityCodeAndStore(ctx context.Context, entityID int64, code string, entityTypeID int, storeID int64) (*catalog.AttributeValue, error) {
	return s.findValue(ctx, code, entityTypeID, func(sb *sqlbuilder.SelectBuilder) string {
		return sb.And(sb.Equal("entity_id", entityID), sb.Equal("store_id", storeID))
	})
}

// SaveURLKey writes the url_key value of one product in one store.
func (s *Store) SaveURLKey(ctx context.Context, entityID int64, entityTypeID int, storeID int64, value string) error {
	attrID, err := s.attributeID(ctx, catalog.AttributeCodeURLKey, entityTypeID)
	if err != nil {
		return err
	}
	ib := sqlbuilder.MySQL.NewInsertBuilder()
	ib.InsertInto(productVarcharTable)
	ib.Cols("attribute_id", "store_id", "entity_id", "value")
	ib.Values(attrID, storeID, entityID, value)
	ib.SQL("ON DUPLICATE KEY UPDATE value = VALUES(value)")

	q, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save url_key of product %d in store %d: %w", entityID, storeID, err)
	}
	return nil
}
