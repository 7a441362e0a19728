package session_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scrapsheet/internal/config"
	"scrapsheet/internal/document"
	"scrapsheet/internal/editor"
	"scrapsheet/internal/session"
	"scrapsheet/internal/store"
)

// testConfig shrinks every window so timer behavior is observable
// without slowing the suite down.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.AutosaveInterval = 30 * time.Millisecond
	cfg.TypingInactivity = 50 * time.Millisecond
	cfg.VersionRotation = 150 * time.Millisecond
	cfg.ResetGrace = 40 * time.Millisecond
	return cfg
}

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDoc(text string) *document.Node {
	return document.NewDoc(document.NewParagraph(document.NewText(text)))
}

// newTestSession creates a document and opens a hydrated session on it.
func newTestSession(t *testing.T, st *store.SQLiteStore, cfg *config.Config) (*session.Manager, *session.Session, string) {
	t.Helper()
	m := session.NewManager(st, cfg)
	docID, err := m.CreateDocument("Test Document", testDoc("hello world"))
	if err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	sess, err := m.Open(docID)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(m.CloseAll)
	return m, sess, docID
}

func TestCreateDocumentInsertsInitialVersion(t *testing.T) {
	st := openTestStore(t)
	m := session.NewManager(st, testConfig())

	docID, err := m.CreateDocument("Fresh", testDoc("content"))
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	doc, err := st.GetDocument(docID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Title != "Fresh" {
		t.Errorf("title = %q", doc.Title)
	}
	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected exactly one initial version, got %d", len(versions))
	}
}

func TestOpenHydrates(t *testing.T) {
	st := openTestStore(t)
	_, sess, _ := newTestSession(t, st, testConfig())

	if !sess.IsHydrated() {
		t.Fatal("opened session should be hydrated")
	}
	if sess.Title() != "Test Document" {
		t.Errorf("Title() = %q", sess.Title())
	}
	if got := document.ExtractText(sess.Content()); got != "hello world" {
		t.Errorf("content = %q", got)
	}
	if sess.WorkingVersion() == nil {
		t.Error("hydration should bind the working version")
	}
	state, _ := sess.State()
	if state != session.StateSaved {
		t.Errorf("State() = %v, want Saved", state)
	}
}

func TestOpenReturnsSameSession(t *testing.T) {
	st := openTestStore(t)
	m, sess, docID := newTestSession(t, st, testConfig())

	again, err := m.Open(docID)
	if err != nil {
		t.Fatal(err)
	}
	if again != sess {
		t.Error("second Open should return the existing session")
	}
}

func TestHydrateRunsOnce(t *testing.T) {
	st := openTestStore(t)
	_, sess, _ := newTestSession(t, st, testConfig())

	sess.SetContent(testDoc("live edits"))
	// A late hydration attempt must not clobber live state.
	if err := sess.Hydrate(); err != nil {
		t.Fatalf("second Hydrate() error = %v", err)
	}
	if got := document.ExtractText(sess.Content()); got != "live edits" {
		t.Errorf("content = %q, hydration clobbered live state", got)
	}
}

func TestHydrateCorruptContentFallsBack(t *testing.T) {
	st := openTestStore(t)
	m := session.NewManager(st, testConfig())
	docID, err := m.CreateDocument("Doc", testDoc("x"))
	if err != nil {
		t.Fatal(err)
	}

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	err = st.WithTx(func(tx store.Transaction) error {
		return tx.UpdateVersion(versions[0].ID, func(v *store.Version) {
			v.Content = "{corrupt"
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := m.Open(docID)
	if err != nil {
		t.Fatalf("Open() should tolerate corrupt content, error = %v", err)
	}
	t.Cleanup(m.CloseAll)
	if got := document.ExtractText(sess.Content()); got != "" {
		t.Errorf("corrupt content should fall back to an empty document, got %q", got)
	}
}

func TestHydrateFromForeignVersion(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	m := session.NewManager(st, cfg)

	otherID, err := m.CreateDocument("Other", testDoc("other"))
	if err != nil {
		t.Fatal(err)
	}
	otherVersions, err := st.GetVersions(otherID)
	if err != nil {
		t.Fatal(err)
	}

	sess := session.New("some-document", st, cfg)
	err = sess.HydrateFromVersion(&otherVersions[0])
	if !errors.Is(err, session.ErrVersionMismatch) {
		t.Errorf("HydrateFromVersion() error = %v, want ErrVersionMismatch", err)
	}
}

func TestAutosavePersistsImmediately(t *testing.T) {
	st := openTestStore(t)
	_, sess, docID := newTestSession(t, st, testConfig())
	before := sess.WorkingVersion()

	sess.SetContent(testDoc("updated content"))
	sess.MarkTyping()
	if err := sess.Autosave(); err != nil {
		t.Fatalf("Autosave() error = %v", err)
	}

	state, _ := sess.State()
	if state != session.StateSaved {
		t.Errorf("State() = %v, want Saved", state)
	}

	// The working version row is updated in place, never duplicated.
	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if versions[0].ID != before.ID {
		t.Error("autosave should reuse the working version row")
	}
	back, err := document.Decode(versions[0].Content)
	if err != nil {
		t.Fatal(err)
	}
	if got := document.ExtractText(back); got != "updated content" {
		t.Errorf("persisted content = %q", got)
	}
}

func TestAutosaveLoopWhileTyping(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	// Keep typing past several autosave intervals.
	deadline := time.Now().Add(4 * cfg.AutosaveInterval)
	first := true
	for time.Now().Before(deadline) {
		sess.SetContent(testDoc("burst " + time.Now().String()))
		sess.MarkTyping()
		if first {
			if err := sess.Autosave(); err != nil {
				t.Fatal(err)
			}
			first = false
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Let the loop catch the final state, then stop typing.
	time.Sleep(2 * cfg.AutosaveInterval)

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) == 0 {
		t.Fatal("no versions after typing burst")
	}
	// The self-perpetuating loop must have saved more than the single
	// explicit Autosave call.
	doc, err := st.GetDocument(docID)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(doc.LastModified) > 3*cfg.AutosaveInterval {
		t.Error("autosave loop did not keep persisting during the burst")
	}
}

func TestRotationCreatesNewWorkingVersion(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)
	initial := sess.WorkingVersion()

	// Keep the typing flag alive across two rotation windows.
	deadline := time.Now().Add(2*cfg.VersionRotation + cfg.AutosaveInterval)
	first := true
	for time.Now().Before(deadline) {
		sess.SetContent(testDoc("still typing"))
		sess.MarkTyping()
		if first {
			if err := sess.Autosave(); err != nil {
				t.Fatal(err)
			}
			first = false
		}
		time.Sleep(10 * time.Millisecond)
	}

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) < 2 {
		t.Fatalf("expected rotation to add version rows, got %d", len(versions))
	}
	current := sess.WorkingVersion()
	if current == nil || current.ID == initial.ID {
		t.Error("rotation should repoint the working version to a new row")
	}
}

// overlapStore wraps a real store and records the highest number of
// transactions running at once.
type overlapStore struct {
	store.Store
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (o *overlapStore) WithTx(fn func(store.Transaction) error) error {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		m := o.maxSeen.Load()
		if n <= m || o.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	// Widen the transaction window so overlap would be observable.
	time.Sleep(2 * time.Millisecond)
	return o.Store.WithTx(fn)
}

func TestNoConcurrentPersists(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	cfg.VersionRotation = time.Hour

	m := session.NewManager(st, cfg)
	docID, err := m.CreateDocument("Doc", testDoc("x"))
	if err != nil {
		t.Fatal(err)
	}

	wrapped := &overlapStore{Store: st}
	sess := session.New(docID, wrapped, cfg)
	if err := sess.Hydrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sess.Reset)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				sess.SetContent(testDoc(fmt.Sprintf("edit %d/%d", g, i)))
				sess.MarkTyping()
				if err := sess.Autosave(); err != nil {
					t.Error(err)
				}
			}
		}(g)
	}
	wg.Wait()

	if max := wrapped.maxSeen.Load(); max > 1 {
		t.Errorf("observed %d concurrent persist transactions, want at most 1", max)
	}
}

func TestRotationStopsWhenNotTyping(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	sess.SetContent(testDoc("one edit"))
	sess.MarkTyping()
	if err := sess.Autosave(); err != nil {
		t.Fatal(err)
	}

	// Typing stops well before the rotation window elapses.
	time.Sleep(cfg.TypingInactivity + 2*cfg.VersionRotation)

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Errorf("rotation ran while idle, got %d versions", len(versions))
	}
}

func TestRotationSkipsUnchangedContent(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	// Keep the typing flag alive with identical content across more
	// than two rotation windows; only the first tick may checkpoint.
	deadline := time.Now().Add(2*cfg.VersionRotation + cfg.VersionRotation/2)
	first := true
	for time.Now().Before(deadline) {
		sess.SetContent(testDoc("unchanged"))
		sess.MarkTyping()
		if first {
			if err := sess.Autosave(); err != nil {
				t.Fatal(err)
			}
			first = false
		}
		time.Sleep(10 * time.Millisecond)
	}

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Errorf("expected a single checkpoint for unchanged content, got %d versions", len(versions))
	}
}

func TestResetClearsState(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, _ := newTestSession(t, st, cfg)

	sess.SetContent(testDoc("about to go away"))
	sess.Reset()

	if sess.IsHydrated() {
		t.Error("reset should clear hydration")
	}
	if sess.WorkingVersion() != nil {
		t.Error("reset should clear the working version")
	}
	if got := document.ExtractText(sess.Content()); got != "" {
		t.Errorf("reset should clear content, got %q", got)
	}
	state, _ := sess.State()
	if state != session.StateUnsaved {
		t.Errorf("State() = %v, want Unsaved", state)
	}
}

func TestAutosaveDuringResetGraceIsDropped(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	sess.Reset()

	// Inside the grace window every save request is refused.
	sess.SetContent(testDoc("should not persist"))
	sess.MarkTyping()
	if err := sess.Autosave(); err != nil {
		t.Fatalf("Autosave() during grace error = %v", err)
	}

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range versions {
		back, err := document.Decode(v.Content)
		if err != nil {
			continue
		}
		if document.ExtractText(back) == "should not persist" {
			t.Fatal("save during reset grace reached the store")
		}
	}
}

func TestRestoreVersionAddsRow(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	checkpoint := sess.WorkingVersion()

	// Move the live document past the checkpoint.
	sess.SetContent(testDoc("newer state"))
	sess.MarkTyping()
	if err := sess.Autosave(); err != nil {
		t.Fatal(err)
	}

	if err := sess.RestoreVersion(checkpoint.ID); err != nil {
		t.Fatalf("RestoreVersion() error = %v", err)
	}

	if got := document.ExtractText(sess.Content()); got != "hello world" {
		t.Errorf("restored content = %q, want original", got)
	}

	// Restoration writes a new row; the checkpoint stays immutable.
	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions after restore, got %d", len(versions))
	}
	working := sess.WorkingVersion()
	if working.ID == checkpoint.ID {
		t.Error("restore should create a new working version, not reuse the checkpoint")
	}
}

func TestRestoreForeignVersion(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	m, sess, _ := newTestSession(t, st, cfg)

	otherID, err := m.CreateDocument("Other", testDoc("other"))
	if err != nil {
		t.Fatal(err)
	}
	otherVersions, err := st.GetVersions(otherID)
	if err != nil {
		t.Fatal(err)
	}

	err = sess.RestoreVersion(otherVersions[0].ID)
	if !errors.Is(err, session.ErrVersionMismatch) {
		t.Errorf("RestoreVersion() error = %v, want ErrVersionMismatch", err)
	}
}

func TestCleanupSparesWorkingVersion(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	cfg.VersionValidity = time.Hour
	_, sess, docID := newTestSession(t, st, cfg)

	// Age the working version past validity, and add one stale
	// checkpoint next to it.
	working := sess.WorkingVersion()
	ancient := time.Now().Add(-48 * time.Hour)
	err := st.WithTx(func(tx store.Transaction) error {
		if err := tx.UpdateVersion(working.ID, func(v *store.Version) {
			v.Timestamp = ancient
		}); err != nil {
			return err
		}
		return tx.InsertVersion(&store.Version{
			ID:         store.NewID(),
			DocumentID: docID,
			Content:    `{"type":"doc"}`,
			Title:      "old checkpoint",
			Timestamp:  ancient,
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	removed, err := sess.CleanupOldVersions()
	if err != nil {
		t.Fatalf("CleanupOldVersions() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || versions[0].ID != working.ID {
		t.Error("working version must survive cleanup regardless of age")
	}

	select {
	case n := <-sess.Notices():
		if n.Level != session.NoticeInfo {
			t.Errorf("notice level = %v", n.Level)
		}
	default:
		t.Error("cleanup should emit a notice when rows were removed")
	}
}

func TestAttachDrivesAutosave(t *testing.T) {
	st := openTestStore(t)
	cfg := testConfig()
	_, sess, docID := newTestSession(t, st, cfg)

	eng := editor.New(sess.Content())
	sess.Attach(eng)

	if _, err := eng.AppendParagraph("typed through the engine"); err != nil {
		t.Fatal(err)
	}

	// The change callback saves synchronously on the first keystroke.
	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	back, err := document.Decode(versions[0].Content)
	if err != nil {
		t.Fatal(err)
	}
	if got := document.ExtractText(back); got != "hello world typed through the engine" {
		t.Errorf("persisted content = %q", got)
	}
}

func TestDeleteDocumentRemovesEverything(t *testing.T) {
	st := openTestStore(t)
	m, _, docID := newTestSession(t, st, testConfig())

	if err := m.DeleteDocument(docID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, err := st.GetDocument(docID); !errors.Is(err, store.ErrNotFound) {
		t.Error("document should be gone")
	}
	versions, err := st.GetVersions(docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 0 {
		t.Errorf("expected no versions after delete, got %d", len(versions))
	}
	if _, ok := m.Get(docID); ok {
		t.Error("session should be closed on delete")
	}
}
