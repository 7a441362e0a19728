package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLiteTx implements Transaction over a single SQL transaction. It
// records which documents were touched so the store can fire live
// subscriptions after commit.
type SQLiteTx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

func (t *SQLiteTx) InsertDocument(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.LastModified.IsZero() {
		doc.LastModified = doc.CreatedAt
	}

	_, err := t.tx.Exec(`
        INSERT INTO documents (id, title, preview, created_at, last_modified)
        VALUES (?, ?, ?, ?, ?)
    `, doc.ID, doc.Title, doc.Preview, toMillis(doc.CreatedAt), toMillis(doc.LastModified))
	if err != nil {
		return fmt.Errorf("failed to insert document in transaction: %w", err)
	}

	t.touched[doc.ID] = struct{}{}
	return nil
}

func (t *SQLiteTx) UpdateDocument(id string, fn func(*Document)) error {
	var doc Document
	var createdAt, lastModified int64
	err := t.tx.QueryRow(
		"SELECT id, title, preview, created_at, last_modified FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Preview, &createdAt, &lastModified)

	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query document in transaction: %w", err)
	}

	doc.CreatedAt = fromMillis(createdAt)
	doc.LastModified = fromMillis(lastModified)
	fn(&doc)

	_, err = t.tx.Exec(`
        UPDATE documents SET title = ?, preview = ?, last_modified = ?
        WHERE id = ?
    `, doc.Title, doc.Preview, toMillis(doc.LastModified), id)
	if err != nil {
		return fmt.Errorf("failed to update document in transaction: %w", err)
	}

	t.touched[id] = struct{}{}
	return nil
}

func (t *SQLiteTx) DeleteDocument(id string) error {
	result, err := t.tx.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document in transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	t.touched[id] = struct{}{}
	return nil
}

func (t *SQLiteTx) InsertVersion(v *Version) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}

	_, err := t.tx.Exec(`
        INSERT INTO versions (id, document_id, content, title, font_family, timestamp)
        VALUES (?, ?, ?, ?, ?, ?)
    `, v.ID, v.DocumentID, v.Content, v.Title, v.FontFamily, toMillis(v.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert version in transaction: %w", err)
	}

	t.touched[v.DocumentID] = struct{}{}
	return nil
}

func (t *SQLiteTx) UpdateVersion(id string, fn func(*Version)) error {
	var v Version
	var ts int64
	err := t.tx.QueryRow(
		"SELECT id, document_id, content, title, font_family, timestamp FROM versions WHERE id = ?",
		id,
	).Scan(&v.ID, &v.DocumentID, &v.Content, &v.Title, &v.FontFamily, &ts)

	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query version in transaction: %w", err)
	}

	v.Timestamp = fromMillis(ts)
	fn(&v)

	_, err = t.tx.Exec(`
        UPDATE versions SET content = ?, title = ?, font_family = ?, timestamp = ?
        WHERE id = ?
    `, v.Content, v.Title, v.FontFamily, toMillis(v.Timestamp), id)
	if err != nil {
		return fmt.Errorf("failed to update version in transaction: %w", err)
	}

	t.touched[v.DocumentID] = struct{}{}
	return nil
}

func (t *SQLiteTx) DeleteVersion(id string) error {
	var documentID string
	err := t.tx.QueryRow("SELECT document_id FROM versions WHERE id = ?", id).Scan(&documentID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query version in transaction: %w", err)
	}

	if _, err := t.tx.Exec("DELETE FROM versions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete version in transaction: %w", err)
	}

	t.touched[documentID] = struct{}{}
	return nil
}
