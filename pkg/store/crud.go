package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liliang-cn/agentmem/internal/encoding"
	"github.com/liliang-cn/agentmem/pkg/memerr"
)

// Upsert deletes by id in both tables then inserts, committed once — serves
// as the idempotent upsert §4.1 and §8 Testable Property 1 require.
func (s *Store) Upsert(ctx context.Context, collection string, rec *Record) error {
	return s.UpsertBatch(ctx, collection, []*Record{rec})
}

// UpsertBatch commits every record in one transaction. Any error aborts the
// whole batch — no partial commits (§4.1 failure semantics).
func (s *Store) UpsertBatch(ctx context.Context, collection string, recs []*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("UpsertBatch", memerr.ErrClosed)
	}

	col, err := s.collectionInfoLocked(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Wrap("UpsertBatch", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = newID()
		}
		if col.Dimension > 0 && len(rec.Vector) != col.Dimension {
			return memerr.Wrap("UpsertBatch", fmt.Errorf("%w: collection %q expects dim %d, got %d",
				memerr.ErrInvalidEmbeddingDim, collection, col.Dimension, len(rec.Vector)))
		}
		if err := encoding.ValidateVector(rec.Vector); err != nil {
			return memerr.Wrap("UpsertBatch", fmt.Errorf("collection %q: %w", collection, err))
		}

		vecBytes, err := encoding.EncodeVector(rec.Vector)
		if err != nil {
			return memerr.Wrap("UpsertBatch", err)
		}
		payload := rec.Metadata
		if payload == nil {
			payload = map[string]any{}
		}
		payloadJSON, err := encoding.EncodePayload(payload)
		if err != nil {
			return memerr.Wrap("UpsertBatch", err)
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rec.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE collection = ? AND id = ?`, collection, rec.ID); err != nil {
			return memerr.Wrap("UpsertBatch", err)
		}

		var expiresAt any
		if rec.ExpiresAt != nil {
			expiresAt = rec.ExpiresAt.UTC()
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memories(id, collection, vector, content, user_id, payload, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, collection, vecBytes, rec.Text, rec.UserID, payloadJSON, createdAt, rec.UpdatedAt, expiresAt,
		); err != nil {
			return memerr.Wrap("UpsertBatch", err)
		}
		rec.CreatedAt = createdAt
	}

	return memerr.Wrap("UpsertBatch", tx.Commit())
}

// collectionInfoLocked looks up the collection's dimension. It creates
// nothing: for a collection with no row it returns dimension 0, which
// callers treat as unknown and skip the dimension check.
func (s *Store) collectionInfoLocked(ctx context.Context, name string) (Collection, error) {
	var c Collection
	c.Name = name
	row := s.db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, name)
	err := row.Scan(&c.Dimension)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return c, memerr.Wrap("collectionInfo", err)
	}
	return c, nil // dimension 0 == unknown, dimension check skipped
}

// Update independently updates the vector and/or payload of an existing id.
func (s *Store) Update(ctx context.Context, collection, id string, vector []float32, text *string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("Update", memerr.ErrClosed)
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if vector != nil {
		vecBytes, err := encoding.EncodeVector(vector)
		if err != nil {
			return memerr.Wrap("Update", err)
		}
		sets = append(sets, "vector = ?")
		args = append(args, vecBytes)
	}
	if text != nil {
		sets = append(sets, "content = ?")
		args = append(args, *text)
	}
	if metadata != nil {
		payloadJSON, err := encoding.EncodePayload(metadata)
		if err != nil {
			return memerr.Wrap("Update", err)
		}
		sets = append(sets, "payload = ?")
		args = append(args, payloadJSON)
	}

	query := "UPDATE memories SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE collection = ? AND id = ?"
	args = append(args, collection, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memerr.Wrap("Update", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.Wrap("Update", memerr.ErrNotFound)
	}
	return nil
}

// Delete removes one record by id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("Delete", memerr.ErrClosed)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return memerr.Wrap("Delete", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.Wrap("Delete", memerr.ErrNotFound)
	}
	return nil
}

// Get fetches one record by id.
func (s *Store) Get(ctx context.Context, collection, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, vector, content, user_id, payload, created_at, updated_at, expires_at
		FROM memories WHERE collection = ? AND id = ?`, collection, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, memerr.Wrap("Get", err)
	}
	return rec, nil
}

// List returns records matching filters, straight SQL with JSON-extracted
// payload field matching for the metadata filter (§4.1).
func (s *Store) List(ctx context.Context, collection string, filters ListFilters) ([]*Record, error) {
	query := `SELECT id, vector, content, user_id, payload, created_at, updated_at, expires_at
		FROM memories WHERE collection = ?`
	args := []any{collection}

	if filters.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filters.UserID)
	}
	for k, v := range filters.Metadata {
		query += " AND json_extract(payload, ?) = ?"
		args = append(args, "$."+k, v)
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerr.Wrap("List", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, memerr.Wrap("List", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*Record, error)     { return scanAny(row) }
func scanRecordRows(rows *sql.Rows) (*Record, error) { return scanAny(rows) }

func scanAny(s rowScanner) (*Record, error) {
	var (
		rec                    Record
		vecBytes               []byte
		payloadJSON            string
		createdAt, updatedAt   time.Time
		expiresAt              sql.NullTime
		userID                 sql.NullString
	)
	if err := s.Scan(&rec.ID, &vecBytes, &rec.Text, &userID, &payloadJSON, &createdAt, &updatedAt, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, memerr.ErrNotFound
		}
		return nil, err
	}
	vec, err := encoding.DecodeVector(vecBytes)
	if err != nil {
		return nil, err
	}
	payload, err := encoding.DecodePayload(payloadJSON)
	if err != nil {
		return nil, err
	}
	rec.Vector = vec
	rec.Metadata = payload
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	if userID.Valid {
		rec.UserID = userID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

// DeleteByUser removes every record owned by user_id within collection,
// used by reset_user (§4.2).
func (s *Store) DeleteByUser(ctx context.Context, collection, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, memerr.Wrap("DeleteByUser", memerr.ErrClosed)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE collection = ? AND user_id = ?`, collection, userID)
	if err != nil {
		return 0, memerr.Wrap("DeleteByUser", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SweepExpired deletes every record in collection whose expires_at is in the
// past relative to now, returning the number removed (§4.2 TTL honoured).
func (s *Store) SweepExpired(ctx context.Context, collection string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, memerr.Wrap("SweepExpired", memerr.ErrClosed)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE collection = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		collection, now.UTC())
	if err != nil {
		return 0, memerr.Wrap("SweepExpired", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
