package persistence

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

func storeSelect() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.MySQL.NewSelectBuilder()
	sb.Select(
		"s.store_id",
		"s.code",
		"s.website_id",
		"COALESCE(g.root_category_id, 0) AS root_category_id",
	)
	sb.From("store AS s")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "store_group AS g", "g.group_id = s.group_id")
	return sb
}

// Stores implements catalog.StoreProvider and category.Source.
func (s *Store) Stores(ctx context.Context) ([]catalog.Store, error) {
	sb := storeSelect()
	sb.OrderBy("s.store_id")

	q, args := sb.Build()
	var out []catalog.Store
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out, nil
}

// StoreByCode implements catalog.StoreProvider.  "" means admin.
func (s *Store) StoreByCode(ctx context.Context, code string) (catalog.Store, error) {
	if code == "" {
		code = catalog.AdminStoreCode
	}
	sb := storeSelect()
	sb.Where(sb.Equal("s.code", code))

	q, args := sb.Build()
	var st catalog.Store
	if err := s.db.GetContext(ctx, &st, q, args...); err != nil {
		return catalog.Store{}, notFound(err, "store view %q", code)
	}
	return st, nil
}

// categoriesSQL merges store-level EAV values over admin values.  For a
// non-admin store only categories with at least one store-level value are
// returned; the snapshot falls back to the admin row for the rest.
const categoriesSQL = `
SELECT e.entity_id, e.parent_id, e.path,
       COALESCE(sn.value, an.value, '') AS name,
       COALESCE(su.value, au.value, '') AS url_path,
       COALESCE(sa.value, aa.value, 0)  AS is_anchor
  FROM catalog_category_entity e
  LEFT JOIN catalog_category_entity_varchar an
         ON an.entity_id = e.entity_id AND an.attribute_id = ? AND an.store_id = 0
  LEFT JOIN catalog_category_entity_varchar sn
         ON sn.entity_id = e.entity_id AND sn.attribute_id = ? AND sn.store_id = ?
  LEFT JOIN catalog_category_entity_varchar au
         ON au.entity_id = e.entity_id AND au.attribute_id = ? AND au.store_id = 0
  LEFT JOIN catalog_category_entity_varchar su
         ON su.entity_id = e.entity_id AND su.attribute_id = ? AND su.store_id = ?
  LEFT JOIN catalog_category_entity_int aa
         ON aa.entity_id = e.entity_id AND aa.attribute_id = ? AND aa.store_id = 0
  LEFT JOIN catalog_category_entity_int sa
         ON sa.entity_id = e.entity_id AND sa.attribute_id = ? AND sa.store_id = ?
 WHERE ? = 0 OR sn.value_id IS NOT NULL OR su.value_id IS NOT NULL OR sa.value_id IS NOT NULL
 ORDER BY e.entity_id`

// CategoriesForStore implements category.Source.
func (s *Store) CategoriesForStore(ctx context.Context, storeID int64) ([]catalog.Category, error) {
	ids := make(map[string]int64, 3)
	for _, code := range []string{"name", "url_path", "is_anchor"} {
		id, err := s.typedAttributeID(ctx, code, EntityTypeCategory)
		if err != nil {
			return nil, err
		}
		ids[code] = id
	}

	var out []catalog.Category
	err := s.db.SelectContext(ctx, &out, categoriesSQL,
		ids["name"], ids["name"], storeID,
		ids["url_path"], ids["url_path"], storeID,
		ids["is_anchor"], ids["is_anchor"], storeID,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("categories for store %d: %w", storeID, err)
	}
	return out, nil
}
