package session

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"scrapsheet/internal/config"
	"scrapsheet/internal/document"
	"scrapsheet/internal/editor"
	"scrapsheet/internal/store"
	"scrapsheet/internal/utils"

	"github.com/tliron/commonlog"
)

// ErrVersionMismatch flags a persist or restore whose version row does
// not belong to the document being saved. A hard abort, never papered
// over with mismatched data.
var ErrVersionMismatch = errors.New("version does not belong to document")

// SaveState is the host-facing tri-state save indicator.
type SaveState int

const (
	StateUnsaved SaveState = iota
	StateSaving
	StateSaved
)

func (s SaveState) String() string {
	switch s {
	case StateSaving:
		return "Saving..."
	case StateSaved:
		return "Saved"
	default:
		return "Unsaved"
	}
}

// NoticeLevel classifies non-blocking notices.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a dismissable, non-blocking message for the host UI, used
// for background outcomes like version garbage collection.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Session orchestrates autosave and version rotation for one open
// document. It owns its three timers (autosave, typing inactivity,
// rotation) so concurrent document sessions never share timer state.
type Session struct {
	mu    sync.Mutex
	log   commonlog.Logger
	store store.Store
	cfg   *config.Config

	documentID string

	title      string
	content    *document.Node
	fontFamily string
	working    *store.Version

	isSaved     bool
	isSaving    bool
	isResetting bool
	isHydrated  bool
	isTyping    bool
	rotating    bool

	lastSavedAt     time.Time
	lastRotationAt  time.Time
	rotationStarted bool

	// Checksum of the content captured by the last rotation, used to
	// avoid checkpointing identical content twice.
	lastRotatedSum []byte

	autosaveTimer   *time.Timer
	inactivityTimer *time.Timer
	rotationTimer   *time.Timer

	notices chan Notice
}

// New creates a session for the given document. A nil config uses the
// defaults.
func New(documentID string, st store.Store, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		log:        commonlog.GetLogger("scrapsheet.session"),
		store:      st,
		cfg:        cfg,
		documentID: documentID,
		content:    document.NewDoc(),
		fontFamily: cfg.DefaultFontFamily,
		notices:    make(chan Notice, 8),
	}
}

// Attach wires a live engine to the session: every content-changing
// transaction pushes the new tree, marks typing, and kicks autosave.
func (s *Session) Attach(eng editor.Engine) {
	eng.OnChange(func() {
		s.SetContent(eng.ContentTree())
		s.MarkTyping()
		if err := s.Autosave(); err != nil {
			s.log.Errorf("autosave failed: %s", err.Error())
		}
	})
}

// DocumentID returns the identity of the document this session edits.
func (s *Session) DocumentID() string {
	return s.documentID
}

// SetContent replaces the live content tree.
func (s *Session) SetContent(tree *document.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tree == nil {
		tree = document.NewDoc()
	}
	s.content = tree
}

// Content returns a copy of the live content tree.
func (s *Session) Content() *document.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content.Clone()
}

// SetTitle updates the live title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// Title returns the live title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetFontFamily updates the live font family.
func (s *Session) SetFontFamily(font string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fontFamily = font
}

// FontFamily returns the live font family.
func (s *Session) FontFamily() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fontFamily
}

// WorkingVersion returns a copy of the current working version, or nil
// before the first persist.
func (s *Session) WorkingVersion() *store.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.working == nil {
		return nil
	}
	wv := *s.working
	return &wv
}

// State returns the save tri-state and the last successful save time.
func (s *Session) State() (SaveState, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.isSaving:
		return StateSaving, s.lastSavedAt
	case s.isSaved:
		return StateSaved, s.lastSavedAt
	default:
		return StateUnsaved, s.lastSavedAt
	}
}

// IsTyping reports whether the user typed within the inactivity window.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTyping
}

// IsHydrated reports whether a persisted version was bound to this
// session.
func (s *Session) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHydrated
}

// Notices is the channel of non-blocking background notices.
func (s *Session) Notices() <-chan Notice {
	return s.notices
}

// MarkTyping records user activity and re-arms the inactivity timer.
// The typing flag is what keeps the autosave and rotation cycles alive.
func (s *Session) MarkTyping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isResetting {
		return
	}
	s.isTyping = true
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
	}
	s.inactivityTimer = time.AfterFunc(s.cfg.TypingInactivity, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.isTyping = false
		s.log.Debug("user stopped typing (inactivity)")
	})
}

// Autosave persists immediately unless a save is already in flight,
// then schedules the next persist for one autosave interval later. The
// cycle self-perpetuates only while typing continues, collapsing a
// keystroke burst into periodic saves. The first save of a document
// session also starts the version rotation cycle.
func (s *Session) Autosave() error {
	s.mu.Lock()
	if s.isSaving {
		s.log.Debug("autosave skipped - save in flight")
		s.mu.Unlock()
		return nil
	}
	if s.isResetting {
		s.mu.Unlock()
		return nil
	}
	if s.autosaveTimer != nil {
		// A follow-up save is already scheduled; it will pick up the
		// latest content when it fires.
		s.mu.Unlock()
		return nil
	}
	if !s.rotationStarted {
		s.rotationStarted = true
		s.lastRotationAt = time.Now()
		s.scheduleRotationLocked()
	}
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isResetting || s.autosaveTimer != nil {
		return nil
	}
	s.autosaveTimer = time.AfterFunc(s.cfg.AutosaveInterval, func() {
		s.mu.Lock()
		s.autosaveTimer = nil
		typing := s.isTyping && !s.isSaving && !s.isResetting
		s.mu.Unlock()
		if typing {
			if err := s.Autosave(); err != nil {
				s.log.Errorf("autosave failed: %s", err.Error())
			}
		}
	})
	return nil
}

// persist runs one save transaction: document metadata plus either the
// first version insert or an update of the working version. The
// working version must belong to this document; a mismatch aborts the
// transaction. Results are discarded if a reset was issued mid-flight.
func (s *Session) persist() error {
	s.mu.Lock()
	if s.isResetting {
		s.log.Warning("save aborted - reset in progress")
		s.mu.Unlock()
		return nil
	}
	// Autosave checks isSaving before calling, but it drops the lock in
	// between; the flag must flip in the same critical section that
	// reads it or two callers can both reach the transaction.
	if s.isSaving {
		s.log.Debug("persist skipped - save in flight")
		s.mu.Unlock()
		return nil
	}
	s.isSaving = true
	s.isSaved = false

	documentID := s.documentID
	title := s.title
	if title == "" {
		title = s.cfg.DefaultTitle
	}
	content := s.content
	font := s.fontFamily
	working := s.working
	s.mu.Unlock()

	finish := func(err error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.isSaving = false
		if s.isResetting {
			s.log.Warning("save result discarded - reset during transaction")
			return nil
		}
		if err != nil {
			s.isSaved = false
		}
		return err
	}

	encoded, err := document.Encode(content)
	if err != nil {
		return finish(fmt.Errorf("failed to encode content: %w", err))
	}
	preview := document.Preview(content, s.cfg.PreviewLength)
	if preview == "" {
		preview = "Start writing..."
	}

	now := time.Now()
	var updated *store.Version

	err = s.store.WithTx(func(tx store.Transaction) error {
		if err := tx.UpdateDocument(documentID, func(d *store.Document) {
			d.Title = title
			d.Preview = preview
			d.LastModified = now
		}); err != nil {
			return err
		}

		if working == nil {
			v := &store.Version{
				ID:         store.NewID(),
				DocumentID: documentID,
				Content:    encoded,
				Title:      title,
				FontFamily: font,
				Timestamp:  now,
			}
			if err := tx.InsertVersion(v); err != nil {
				return err
			}
			updated = v
			return nil
		}

		if working.DocumentID != documentID {
			return fmt.Errorf("%w: version %s belongs to %s, saving %s",
				ErrVersionMismatch, working.ID, working.DocumentID, documentID)
		}
		if err := tx.UpdateVersion(working.ID, func(v *store.Version) {
			v.Content = encoded
			v.Title = title
			v.FontFamily = font
			v.Timestamp = now
		}); err != nil {
			return err
		}
		uv := *working
		uv.Content = encoded
		uv.Title = title
		uv.FontFamily = font
		uv.Timestamp = now
		updated = &uv
		return nil
	})
	if err != nil {
		return finish(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isSaving = false
	if s.isResetting {
		s.log.Warning("save result discarded - reset during transaction")
		return nil
	}
	// Rotation may have repointed the working version while this save
	// was in flight; never move the pointer backwards.
	if s.working == nil || working == nil || s.working.ID == updated.ID {
		s.working = updated
	}
	s.isSaved = true
	s.lastSavedAt = now
	return nil
}

// scheduleRotationLocked arms the rotation timer. Caller holds the lock.
func (s *Session) scheduleRotationLocked() {
	if s.rotationTimer != nil {
		s.rotationTimer.Stop()
	}
	s.rotationTimer = time.AfterFunc(s.cfg.VersionRotation, s.rotationTick)
}

// rotationTick promotes a brand-new working version while the user is
// still typing, leaving the previous row untouched as a checkpoint.
// The cycle stops once typing stopped and resumes fresh with the next
// autosave. Rotation does not wait on autosave's in-flight flag; its
// own rotating flag is the only self-race guard.
func (s *Session) rotationTick() {
	s.mu.Lock()
	if s.isResetting {
		s.mu.Unlock()
		return
	}
	if !s.isTyping {
		s.log.Debug("rotation cycle stopped - user not typing")
		s.rotationStarted = false
		s.mu.Unlock()
		return
	}
	if s.rotating || s.working == nil {
		s.scheduleRotationLocked()
		s.mu.Unlock()
		return
	}

	s.rotating = true
	documentID := s.documentID
	title := s.title
	if title == "" {
		title = s.cfg.DefaultTitle
	}
	content := s.content
	font := s.fontFamily
	working := s.working
	s.mu.Unlock()

	if working.DocumentID != documentID {
		s.log.Errorf("rotation aborted: version %s belongs to %s, not %s",
			working.ID, working.DocumentID, documentID)
		s.mu.Lock()
		s.rotating = false
		s.scheduleRotationLocked()
		s.mu.Unlock()
		return
	}

	encoded, err := document.Encode(content)
	if err != nil {
		s.log.Errorf("rotation failed to encode content: %s", err.Error())
		s.mu.Lock()
		s.rotating = false
		s.scheduleRotationLocked()
		s.mu.Unlock()
		return
	}

	sum := utils.ComputeChecksum([]byte(encoded))
	s.mu.Lock()
	if bytes.Equal(sum, s.lastRotatedSum) {
		s.log.Debug("rotation skipped - content unchanged since last checkpoint")
		s.rotating = false
		s.scheduleRotationLocked()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The working version is already up to date in the store from
	// continuous autosaves; it simply becomes a checkpoint. Only a new
	// row is inserted.
	now := time.Now()
	v := &store.Version{
		ID:         store.NewID(),
		DocumentID: documentID,
		Content:    encoded,
		Title:      title,
		FontFamily: font,
		Timestamp:  now,
	}
	err = s.store.WithTx(func(tx store.Transaction) error {
		return tx.InsertVersion(v)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotating = false
	if s.isResetting {
		s.log.Warning("rotation result discarded - reset during transaction")
		return
	}
	if err != nil {
		s.log.Errorf("version rotation failed: %s", err.Error())
	} else {
		s.working = v
		s.lastRotationAt = now
		s.lastRotatedSum = sum
		s.log.Infof("rotated to new working version %s", v.ID)
	}
	s.scheduleRotationLocked()
}

// Reset tears the session down: all timers cancelled, state cleared,
// and the reset guard raised so any in-flight transaction's completion
// discards its result. The guard clears after a grace period.
func (s *Session) Reset() {
	s.mu.Lock()
	s.isResetting = true
	if s.isSaving || s.rotating {
		s.log.Warning("reset with operation in flight; pending results will be discarded")
	}

	for _, t := range []**time.Timer{&s.autosaveTimer, &s.inactivityTimer, &s.rotationTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}

	s.title = ""
	s.content = document.NewDoc()
	s.fontFamily = s.cfg.DefaultFontFamily
	s.working = nil
	s.isSaved = false
	s.isHydrated = false
	s.isTyping = false
	s.rotationStarted = false
	s.lastSavedAt = time.Time{}
	s.lastRotationAt = time.Time{}
	s.lastRotatedSum = nil
	grace := s.cfg.ResetGrace
	s.mu.Unlock()

	time.AfterFunc(grace, func() {
		s.mu.Lock()
		s.isResetting = false
		s.mu.Unlock()
		s.log.Debug("reset complete")
	})
}

func (s *Session) notify(level NoticeLevel, format string, args ...any) {
	select {
	case s.notices <- Notice{Level: level, Message: fmt.Sprintf(format, args...)}:
	default:
		// Notices are best-effort; drop when the host isn't reading.
	}
}
