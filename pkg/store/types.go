// Package store implements the Hybrid Vector Store (C1): a single SQLite
// database holding one vector+metadata table pair per collection plus a
// global FTS5 table for BM25 keyword search over the same ids.
package store

import "time"

// Collection names a (vector table, metadata table) pair with a fixed
// embedding dimension decided at creation time.
type Collection struct {
	Name      string
	Dimension int
}

// Record is the only persisted primary entity: an id, a fixed-dimension
// embedding, and a payload document carrying the textual memory, its owner,
// and an opaque metadata sub-document.
type Record struct {
	ID        string
	Vector    []float32
	Text      string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
	Metadata  map[string]any
}

// Scored wraps a Record with the score it was retrieved at.
type Scored struct {
	Record
	Score float64
}

// SearchOptions bounds a vector or keyword search.
type SearchOptions struct {
	Limit    int
	UserID   string // optional filter
	MinScore float64
}

// ListFilters narrows List to records whose metadata or user_id match.
// All fields are optional; zero-value fields are not applied.
type ListFilters struct {
	UserID   string
	Metadata map[string]string // exact match against JSON-extracted payload fields
	Limit    int
}

// HistoryEntry is one audit row recorded by the Update Decider pipeline,
// grounded on the original pool's history database (see SPEC_FULL.md).
type HistoryEntry struct {
	ID         string
	Collection string
	MemoryID   string
	Event      string // ADD, UPDATE, DELETE, NONE
	OldText    string
	NewText    string
	Actor      string
	At         time.Time
}
