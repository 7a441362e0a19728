package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the local persistence store backing documents and
// their version history.
type SQLiteStore struct {
	db *sql.DB

	subMu   sync.Mutex
	subs    map[string]map[int]func()
	nextSub int
}

// NewSQLiteStore opens (or creates) the store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode
	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		subs: make(map[string]map[int]func()),
	}, nil
}

// WithTx runs fn inside a single atomic transaction. Subscribers of
// any document touched by the transaction are notified after commit.
func (s *SQLiteStore) WithTx(fn func(Transaction) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	defer tx.Rollback()

	stx := &SQLiteTx{tx: tx, touched: make(map[string]struct{})}
	if err := fn(stx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	for id := range stx.touched {
		s.notify(id)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(id string) (*Document, error) {
	var doc Document
	var createdAt, lastModified int64
	err := s.db.QueryRow(
		"SELECT id, title, preview, created_at, last_modified FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Preview, &createdAt, &lastModified)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.CreatedAt = fromMillis(createdAt)
	doc.LastModified = fromMillis(lastModified)
	return &doc, nil
}

func (s *SQLiteStore) GetAllDocuments() ([]Document, error) {
	rows, err := s.db.Query(
		"SELECT id, title, preview, created_at, last_modified FROM documents ORDER BY last_modified DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var createdAt, lastModified int64
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Preview, &createdAt, &lastModified); err != nil {
			return nil, fmt.Errorf("failed to scan document record: %w", err)
		}
		doc.CreatedAt = fromMillis(createdAt)
		doc.LastModified = fromMillis(lastModified)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document records: %w", err)
	}
	return docs, nil
}

func (s *SQLiteStore) GetVersion(id string) (*Version, error) {
	var v Version
	var ts int64
	err := s.db.QueryRow(
		"SELECT id, document_id, content, title, font_family, timestamp FROM versions WHERE id = ?",
		id,
	).Scan(&v.ID, &v.DocumentID, &v.Content, &v.Title, &v.FontFamily, &ts)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query version: %w", err)
	}

	v.Timestamp = fromMillis(ts)
	return &v, nil
}

// GetVersions returns a document's versions newest first.
func (s *SQLiteStore) GetVersions(documentID string) ([]Version, error) {
	rows, err := s.db.Query(`
        SELECT id, document_id, content, title, font_family, timestamp
        FROM versions
        WHERE document_id = ?
        ORDER BY timestamp DESC, id
    `, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var ts int64
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Content, &v.Title, &v.FontFamily, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan version record: %w", err)
		}
		v.Timestamp = fromMillis(ts)
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version records: %w", err)
	}
	return versions, nil
}

// Subscribe registers a live-query callback for one document.
func (s *SQLiteStore) Subscribe(documentID string, fn func()) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++

	if s.subs[documentID] == nil {
		s.subs[documentID] = make(map[int]func())
	}
	s.subs[documentID][id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[documentID], id)
	}
}

func (s *SQLiteStore) notify(documentID string) {
	s.subMu.Lock()
	subs := make([]func(), 0, len(s.subs[documentID]))
	for _, fn := range s.subs[documentID] {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
