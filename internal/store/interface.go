package store

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// Document is a persisted document's metadata row. Content lives in
// version rows.
type Document struct {
	ID           string
	Title        string
	Preview      string
	CreatedAt    time.Time
	LastModified time.Time
}

// Version is a content snapshot of a document. Exactly one version per
// document is the working version being mutated by autosave; all others
// are immutable historical checkpoints.
type Version struct {
	ID         string
	DocumentID string
	Content    string
	Title      string
	FontFamily string
	Timestamp  time.Time
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the document's shape before insertion.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Title, validation.Required),
	)
}

// Validate checks the version's shape before insertion.
func (v *Version) Validate() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.ID, validation.Required),
		validation.Field(&v.DocumentID, validation.Required),
		validation.Field(&v.Timestamp, validation.Required),
	)
}

// Transaction is the mutation surface available inside WithTx. Updates
// take a mutator so callers express intent against the current row
// state rather than blind overwrites.
type Transaction interface {
	InsertDocument(doc *Document) error
	UpdateDocument(id string, fn func(*Document)) error
	DeleteDocument(id string) error

	InsertVersion(v *Version) error
	UpdateVersion(id string, fn func(*Version)) error
	DeleteVersion(id string) error
}

// Store is the persistence boundary consumed by the session layer:
// atomic multi-step transactions, fetch-once queries, and an
// in-process live subscription per document.
type Store interface {
	WithTx(fn func(Transaction) error) error

	GetDocument(id string) (*Document, error)
	GetAllDocuments() ([]Document, error)
	GetVersion(id string) (*Version, error)
	GetVersions(documentID string) ([]Version, error)

	// Subscribe registers a callback fired after every committed
	// transaction that touched the given document. The returned
	// function cancels the subscription.
	Subscribe(documentID string, fn func()) (cancel func())

	Close() error
}
