package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

const rewriteTable = "url_rewrite"

var rewriteCols = []string{
	"url_rewrite_id",
	"entity_type",
	"entity_id",
	"request_path",
	"target_path",
	"redirect_type",
	"store_id",
	"is_autogenerated",
	"metadata",
}

// rewriteRow is the scan target for url_rewrite.
type rewriteRow struct {
	ID              int64          `db:"url_rewrite_id"`
	EntityType      string         `db:"entity_type"`
	EntityID        int64          `db:"entity_id"`
	RequestPath     string         `db:"request_path"`
	TargetPath      string         `db:"target_path"`
	RedirectType    int            `db:"redirect_type"`
	StoreID         int64          `db:"store_id"`
	IsAutogenerated bool           `db:"is_autogenerated"`
	Metadata        sql.NullString `db:"metadata"`
}

func (r rewriteRow) model() (catalog.URLRewrite, error) {
	rw := catalog.URLRewrite{
		ID:              r.ID,
		EntityType:      r.EntityType,
		EntityID:        r.EntityID,
		RequestPath:     r.RequestPath,
		TargetPath:      r.TargetPath,
		RedirectType:    r.RedirectType,
		StoreID:         r.StoreID,
		IsAutogenerated: r.IsAutogenerated,
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := json.Unmarshal([]byte(r.Metadata.String), &rw.Metadata); err != nil {
			return catalog.URLRewrite{}, fmt.Errorf("rewrite %d metadata: %w", r.ID, err)
		}
	}
	return rw, nil
}

func encodeMetadata(m catalog.Metadata) (sql.NullString, error) {
	if !m.HasCategory() {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (s *Store) selectRewrites(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]catalog.URLRewrite, error) {
	q, args := sb.Build()
	var rows []rewriteRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]catalog.URLRewrite, 0, len(rows))
	for _, r := range rows {
		rw, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, rw)
	}
	return out, nil
}

func rewriteSelect() *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.MySQL.NewSelectBuilder()
	sb.Select(rewriteCols...).From(rewriteTable)
	return sb
}

// FindByEntityTypeAndEntityIDAndStoreID implements catalog.URLRewriteRepository.
func (s *Store) FindByEntityTypeAndEntityIDAndStoreID(ctx context.Context, entityType string, entityID, storeID int64) ([]catalog.URLRewrite, error) {
	sb := rewriteSelect()
	sb.Where(
		sb.Equal("entity_type", entityType),
		sb.Equal("entity_id", entityID),
		sb.Equal("store_id", storeID),
	)
	sb.OrderBy("url_rewrite_id")

	out, err := s.selectRewrites(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("rewrites of %s %d in store %d: %w", entityType, entityID, storeID, err)
	}
	return out, nil
}

// FindByRequestPath implements catalog.URLRewriteRepository.  The
// (request_path, store_id) pair is unique.
func (s *Store) FindByRequestPath(ctx context.Context, requestPath string, storeID int64) (*catalog.URLRewrite, error) {
	sb := rewriteSelect()
	sb.Where(sb.Equal("request_path", requestPath), sb.Equal("store_id", storeID))

	out, err := s.selectRewrites(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("rewrite %q in store %d: %w", requestPath, storeID, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// FindByStoreID lists every rewrite of a store for the serving table.
func (s *Store) FindByStoreID(ctx context.Context, storeID int64) ([]catalog.URLRewrite, error) {
	sb := rewriteSelect()
	sb.Where(sb.Equal("store_id", storeID))
	sb.OrderBy("url_rewrite_id")

	out, err := s.selectRewrites(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("rewrites of store %d: %w", storeID, err)
	}
	return out, nil
}

// Persist implements catalog.URLRewriteWriter.
//
// Rows with an ID are updated in place.  New rows are inserted; when the
// request path already exists (ER_DUP_ENTRY) the existing row is taken over
// only if it is an autogenerated rewrite of the same entity.  Otherwise
// ErrRequestPathTaken is returned and nothing is written.
func (s *Store) Persist(ctx context.Context, rw catalog.URLRewrite) (int64, error) {
	if rw.ID != 0 {
		return rw.ID, s.update(ctx, rw)
	}

	id, err := s.insert(ctx, rw)
	if err == nil || !isDuplicate(err) {
		return id, err
	}

	cur, err := s.FindByRequestPath(ctx, rw.RequestPath, rw.StoreID)
	if err != nil {
		return 0, err
	}
	if cur == nil {
		return s.insert(ctx, rw)
	}
	if !cur.IsAutogenerated || cur.EntityType != rw.EntityType || cur.EntityID != rw.EntityID {
		s.log.Warnw("request path held by another rewrite",
			"request_path", rw.RequestPath, "store_id", rw.StoreID,
			"owner_type", cur.EntityType, "owner_id", cur.EntityID)
		return 0, fmt.Errorf("%q in store %d: %w", rw.RequestPath, rw.StoreID, ErrRequestPathTaken)
	}
	rw.ID = cur.ID
	return rw.ID, s.update(ctx, rw)
}

func (s *Store) insert(ctx context.Context, rw catalog.URLRewrite) (int64, error) {
	meta, err := encodeMetadata(rw.Metadata)
	if err != nil {
		return 0, err
	}
	ib := sqlbuilder.MySQL.NewInsertBuilder()
	ib.InsertInto(rewriteTable)
	ib.Cols(rewriteCols[1:]...)
	ib.Values(rw.EntityType, rw.EntityID, rw.RequestPath, rw.TargetPath,
		rw.RedirectType, rw.StoreID, rw.IsAutogenerated, meta)

	q, args := ib.Build()
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return 0, err
		}
		return 0, fmt.Errorf("insert rewrite %q: %w", rw.RequestPath, err)
	}
	return res.LastInsertId()
}

func (s *Store) update(ctx context.Context, rw catalog.URLRewrite) error {
	meta, err := encodeMetadata(rw.Metadata)
	if err != nil {
		return err
	}
	ub := sqlbuilder.MySQL.NewUpdateBuilder()
	ub.Update(rewriteTable)
	ub.Set(
		ub.Assign("target_path", rw.TargetPath),
		ub.Assign("redirect_type", rw.RedirectType),
		ub.Assign("is_autogenerated", rw.IsAutogenerated),
		ub.Assign("metadata", meta),
	)
	ub.Where(ub.Equal("url_rewrite_id", rw.ID))

	q, args := ub.Build()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update rewrite %d: %w", rw.ID, err)
	}
	return nil
}
