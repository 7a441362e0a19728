package session

import (
	"fmt"
	"sync"
	"time"

	"scrapsheet/internal/config"
	"scrapsheet/internal/document"
	"scrapsheet/internal/store"

	"github.com/tliron/commonlog"
)

// Manager tracks the open sessions, one per document. Opening the same
// document twice returns the same session so its timers stay singular.
type Manager struct {
	mu       sync.Mutex
	log      commonlog.Logger
	store    store.Store
	cfg      *config.Config
	sessions map[string]*Session
}

// NewManager creates a session manager over the given store.
func NewManager(st store.Store, cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Manager{
		log:      commonlog.GetLogger("scrapsheet.session"),
		store:    st,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for the document, creating and hydrating it
// on first open.
func (m *Manager) Open(documentID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[documentID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := New(documentID, m.store, m.cfg)
	m.sessions[documentID] = s
	m.mu.Unlock()

	if err := s.Hydrate(); err != nil {
		m.mu.Lock()
		delete(m.sessions, documentID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to open document %s: %w", documentID, err)
	}
	return s, nil
}

// Get returns the open session for the document, if any.
func (m *Manager) Get(documentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[documentID]
	return s, ok
}

// Close resets and drops the session for the document.
func (m *Manager) Close(documentID string) {
	m.mu.Lock()
	s, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	m.mu.Unlock()
	if ok {
		s.Reset()
	}
}

// CloseAll resets and drops every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Reset()
	}
}

// CreateDocument inserts a new document together with its first working
// version in one transaction, so a document row never exists without
// content. Returns the new document's identifier.
func (m *Manager) CreateDocument(title string, content *document.Node) (string, error) {
	if title == "" {
		title = m.cfg.DefaultTitle
	}
	if content == nil {
		content = document.NewDoc()
	}

	encoded, err := document.Encode(content)
	if err != nil {
		return "", fmt.Errorf("failed to encode content: %w", err)
	}
	preview := document.Preview(content, m.cfg.PreviewLength)
	if preview == "" {
		preview = "Start writing..."
	}

	now := time.Now()
	doc := &store.Document{
		ID:           store.NewID(),
		Title:        title,
		Preview:      preview,
		CreatedAt:    now,
		LastModified: now,
	}
	version := &store.Version{
		ID:         store.NewID(),
		DocumentID: doc.ID,
		Content:    encoded,
		Title:      title,
		FontFamily: m.cfg.DefaultFontFamily,
		Timestamp:  now,
	}

	err = m.store.WithTx(func(tx store.Transaction) error {
		if err := tx.InsertDocument(doc); err != nil {
			return err
		}
		return tx.InsertVersion(version)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	m.log.Infof("created document %s (%q)", doc.ID, title)
	return doc.ID, nil
}

// DeleteDocument closes any open session and removes the document; its
// versions go with it through the store's cascade.
func (m *Manager) DeleteDocument(documentID string) error {
	m.Close(documentID)
	err := m.store.WithTx(func(tx store.Transaction) error {
		return tx.DeleteDocument(documentID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	m.log.Infof("deleted document %s", documentID)
	return nil
}
