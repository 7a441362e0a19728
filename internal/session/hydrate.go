package session

import (
	"fmt"
	"time"

	"scrapsheet/internal/document"
	"scrapsheet/internal/store"
)

// Hydrate binds the session to the most recent persisted version of its
// document. Hydration runs once per session; later calls are no-ops so
// a slow fetch racing user keystrokes cannot clobber live state.
func (s *Session) Hydrate() error {
	versions, err := s.store.GetVersions(s.documentID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("document %s has no versions: %w", s.documentID, store.ErrNotFound)
	}
	return s.HydrateFromVersion(&versions[0])
}

// HydrateFromVersion binds the session to a specific persisted version.
// Corrupt content is not fatal: the session falls back to an empty
// document rather than refusing to open.
func (s *Session) HydrateFromVersion(v *store.Version) error {
	if v.DocumentID != s.documentID {
		return fmt.Errorf("%w: version %s belongs to %s, hydrating %s",
			ErrVersionMismatch, v.ID, v.DocumentID, s.documentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isHydrated {
		s.log.Debug("hydration skipped - session already hydrated")
		return nil
	}

	tree, err := document.Decode(v.Content)
	if err != nil {
		s.log.Errorf("corrupt content in version %s, falling back to empty document: %s",
			v.ID, err.Error())
		tree = document.NewDoc()
	}

	wv := *v
	s.content = tree
	s.title = v.Title
	if v.FontFamily != "" {
		s.fontFamily = v.FontFamily
	}
	s.working = &wv
	s.isHydrated = true
	s.isSaved = true
	s.lastSavedAt = v.Timestamp
	s.log.Infof("hydrated document %s from version %s", s.documentID, v.ID)
	return nil
}

// RestoreVersion reinstates a historical checkpoint as the live content.
// The checkpoint row itself stays immutable; restoration writes a brand
// new version that becomes the working version, so history keeps both
// the checkpoint and the state being abandoned.
func (s *Session) RestoreVersion(versionID string) error {
	v, err := s.store.GetVersion(versionID)
	if err != nil {
		return fmt.Errorf("failed to load version %s: %w", versionID, err)
	}
	if v.DocumentID != s.documentID {
		return fmt.Errorf("%w: version %s belongs to %s, restoring into %s",
			ErrVersionMismatch, v.ID, v.DocumentID, s.documentID)
	}

	tree, err := document.Decode(v.Content)
	if err != nil {
		return fmt.Errorf("failed to decode version content: %w", err)
	}

	// Optimistic: live state flips to the restored content immediately,
	// before the store round-trip.
	s.mu.Lock()
	s.content = tree
	s.title = v.Title
	if v.FontFamily != "" {
		s.fontFamily = v.FontFamily
	}
	title := s.title
	if title == "" {
		title = s.cfg.DefaultTitle
	}
	font := s.fontFamily
	s.mu.Unlock()

	preview := document.Preview(tree, s.cfg.PreviewLength)
	if preview == "" {
		preview = "Start writing..."
	}

	now := time.Now()
	nv := &store.Version{
		ID:         store.NewID(),
		DocumentID: s.documentID,
		Content:    v.Content,
		Title:      title,
		FontFamily: font,
		Timestamp:  now,
	}
	err = s.store.WithTx(func(tx store.Transaction) error {
		if err := tx.UpdateDocument(s.documentID, func(d *store.Document) {
			d.Title = title
			d.Preview = preview
			d.LastModified = now
		}); err != nil {
			return err
		}
		return tx.InsertVersion(nv)
	})
	if err != nil {
		return fmt.Errorf("failed to persist restored version: %w", err)
	}

	s.mu.Lock()
	s.working = nv
	s.isSaved = true
	s.lastSavedAt = now
	s.mu.Unlock()

	s.log.Infof("restored document %s to version %s (new working version %s)",
		s.documentID, versionID, nv.ID)
	return nil
}

// CleanupOldVersions deletes checkpoints older than the validity window.
// The working version is always spared no matter its age, so a document
// untouched for months still opens. Emits a notice when rows were
// removed.
func (s *Session) CleanupOldVersions() (int, error) {
	s.mu.Lock()
	var workingID string
	if s.working != nil {
		workingID = s.working.ID
	}
	s.mu.Unlock()

	versions, err := s.store.GetVersions(s.documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load versions: %w", err)
	}

	cutoff := time.Now().Add(-s.cfg.VersionValidity)
	var stale []string
	for _, v := range versions {
		if v.ID == workingID {
			continue
		}
		if v.Timestamp.Before(cutoff) {
			stale = append(stale, v.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = s.store.WithTx(func(tx store.Transaction) error {
		for _, id := range stale {
			if err := tx.DeleteVersion(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old versions: %w", err)
	}

	s.log.Infof("cleaned up %d old versions of document %s", len(stale), s.documentID)
	s.notify(NoticeInfo, "Removed %d old versions", len(stale))
	return len(stale), nil
}
