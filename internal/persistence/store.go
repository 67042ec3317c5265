// internal/persistence/store.go
//
// MySQL implementation of every catalog collaborator.
//
// Context
// -------
// Store reads and writes the stock Magento 2 schema through one *sqlx.DB:
//
//	store, store_group                    → StoreProvider, category.Source
//	catalog_category_entity[_varchar|_int]→ category.Source
//	catalog_product_entity[_varchar|_int] → ProductRepository, VarcharAttributeRepository
//	catalog_category_product              → ProductCategoryRelationRepository
//	url_rewrite                           → URLRewriteRepository, URLRewriteWriter
//	eav_entity_type, eav_attribute        → attribute id lookups (cached)
//
// Queries with a fixed shape are plain constants; anything with optional
// clauses goes through go-sqlbuilder in the MySQL flavor.
//
// Notes
// -----
//   - EAV tables are joined on entity_id (Open Source layout).
//   - Oxford commas, two spaces after periods.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

// Entity type codes in eav_entity_type.
const (
	EntityTypeCategory = "catalog_category"
	EntityTypeProduct  = "catalog_product"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// ErrRequestPathTaken is returned by Persist when the request path belongs
// to a manual rewrite or to another entity.
var ErrRequestPathTaken = errors.New("request path owned by another rewrite")

type attrKey struct {
	code         string
	entityTypeID int
}

// Store is safe for concurrent use.
type Store struct {
	db  *sqlx.DB
	log *zap.SugaredLogger

	mu    sync.Mutex
	types map[string]int
	attrs map[attrKey]int64
}

// New wraps db.  log may be nil.
func New(db *sqlx.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.S()
	}
	return &Store{
		db:    db,
		log:   log,
		types: map[string]int{},
		attrs: map[attrKey]int64{},
	}
}

// EntityTypeID returns eav_entity_type.entity_type_id for code.
func (s *Store) EntityTypeID(ctx context.Context, code string) (int, error) {
	s.mu.Lock()
	id, ok := s.types[code]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	const q = `SELECT entity_type_id FROM eav_entity_type WHERE entity_type_code = ?`
	if err := s.db.GetContext(ctx, &id, q, code); err != nil {
		return 0, notFound(err, "entity type %q", code)
	}

	s.mu.Lock()
	s.types[code] = id
	s.mu.Unlock()
	return id, nil
}

// attributeID returns eav_attribute.attribute_id for (code, entity type).
func (s *Store) attributeID(ctx context.Context, code string, entityTypeID int) (int64, error) {
	k := attrKey{code, entityTypeID}
	s.mu.Lock()
	id, ok := s.attrs[k]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	const q = `SELECT attribute_id FROM eav_attribute WHERE attribute_code = ? AND entity_type_id = ?`
	if err := s.db.GetContext(ctx, &id, q, code, entityTypeID); err != nil {
		return 0, notFound(err, "attribute %q (entity type %d)", code, entityTypeID)
	}

	s.mu.Lock()
	s.attrs[k] = id
	s.mu.Unlock()
	return id, nil
}

// typedAttributeID resolves the entity type by code first.
func (s *Store) typedAttributeID(ctx context.Context, code, entityTypeCode string) (int64, error) {
	typeID, err := s.EntityTypeID(ctx, entityTypeCode)
	if err != nil {
		return 0, err
	}
	return s.attributeID(ctx, code, typeID)
}

// notFound maps sql.ErrNoRows to catalog.ErrNotFound and adds context.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, catalog.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// isDuplicate reports a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
