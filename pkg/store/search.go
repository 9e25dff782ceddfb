package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/liliang-cn/agentmem/internal/encoding"
	"github.com/liliang-cn/agentmem/pkg/memerr"
)

// Search runs brute-force KNN over every vector in the collection (no
// approximate index — §4.1 names none) and returns score = 1/(1+distance) in
// descending score order, i.e. nondecreasing distance (Testable Property 3).
func (s *Store) Search(ctx context.Context, collection string, query []float32, opts SearchOptions) ([]Scored, error) {
	sqlQuery := `SELECT id, vector, content, user_id, payload, created_at, updated_at, expires_at FROM memories WHERE collection = ?`
	args := []any{collection}
	if opts.UserID != "" {
		sqlQuery += " AND user_id = ?"
		args = append(args, opts.UserID)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, memerr.Wrap("Search", err)
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, memerr.Wrap("Search", err)
		}
		dist := cosineDistance(query, rec.Vector)
		score := 1.0 / (1.0 + dist)
		if score < opts.MinScore {
			continue
		}
		out = append(out, Scored{Record: *rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Wrap("Search", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	limit := opts.Limit
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// KeywordSearch runs BM25 over the global FTS5 table, optionally filtered by
// user_id, and returns the same (id, score, payload) shape as Search.
func (s *Store) KeywordSearch(ctx context.Context, collection, query, userID string, limit int) ([]Scored, error) {
	if query == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT m.id, m.vector, m.content, m.user_id, m.payload, m.created_at, m.updated_at, m.expires_at,
		       bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ? AND m.collection = ?`
	args := []any{query, collection}
	if userID != "" {
		sqlQuery += " AND m.user_id = ?"
		args = append(args, userID)
	}
	sqlQuery += " ORDER BY rank LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, memerr.Wrap("KeywordSearch", err)
	}
	defer rows.Close()

	var out []Scored
	var ranks []float64
	for rows.Next() {
		var (
			rec                  Record
			vecBytes             []byte
			payloadJSON          string
			userIDNull           sql.NullString
			expiresAt            sql.NullTime
			rank                 float64
		)
		if err := rows.Scan(&rec.ID, &vecBytes, &rec.Text, &userIDNull, &payloadJSON,
			&rec.CreatedAt, &rec.UpdatedAt, &expiresAt, &rank); err != nil {
			return nil, memerr.Wrap("KeywordSearch", err)
		}
		vec, err := encoding.DecodeVector(vecBytes)
		if err != nil {
			return nil, memerr.Wrap("KeywordSearch", err)
		}
		payload, err := encoding.DecodePayload(payloadJSON)
		if err != nil {
			return nil, memerr.Wrap("KeywordSearch", err)
		}
		rec.Vector = vec
		rec.Metadata = payload
		if userIDNull.Valid {
			rec.UserID = userIDNull.String
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			rec.ExpiresAt = &t
		}
		out = append(out, Scored{Record: rec})
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Wrap("KeywordSearch", err)
	}

	// bm25() in SQLite returns lower-is-better; normalize to a (0,1] score
	// so it combines the same way a vector score does in the Pool's merge.
	for i := range out {
		out[i].Score = 1.0 / (1.0 + maxFloat(ranks[i], 0))
	}
	return out, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// AppendHistory records one audit row for the Update Decider pipeline.
func (s *Store) AppendHistory(ctx context.Context, e HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memerr.Wrap("AppendHistory", memerr.ErrClosed)
	}
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history(id, collection, memory_id, event, old_text, new_text, actor, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Collection, e.MemoryID, e.Event, e.OldText, e.NewText, e.Actor, e.At.UTC())
	return memerr.Wrap("AppendHistory", err)
}

// ListHistory returns every audit row for one memory id, oldest first.
func (s *Store) ListHistory(ctx context.Context, memoryID string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, memory_id, event, old_text, new_text, actor, at
		FROM history WHERE memory_id = ? ORDER BY at ASC`, memoryID)
	if err != nil {
		return nil, memerr.Wrap("ListHistory", err)
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Collection, &e.MemoryID, &e.Event, &e.OldText, &e.NewText, &e.Actor, &e.At); err != nil {
			return nil, memerr.Wrap("ListHistory", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
