package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"scrapsheet/internal/ai"
	"scrapsheet/internal/config"
	"scrapsheet/internal/document"
	"scrapsheet/internal/editor"
	"scrapsheet/internal/review"
	"scrapsheet/internal/scheduler"
	"scrapsheet/internal/session"
	"scrapsheet/internal/store"
	"scrapsheet/internal/utils"

	"github.com/joho/godotenv"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// seedDocument builds the demo document. Its spans carry fixed
// identifiers so the static edit provider can address them.
func seedDocument() *document.Node {
	seeded := func(id, text string) *document.Node {
		n := document.NewText(text)
		n.AddMark(document.NodeIDMark(id))
		return n
	}
	return document.NewDoc(
		document.NewHeading(1, seeded("seed-heading-1",
			"Institution C1 – Nutrition and Metabelism Laboratory")),
		document.NewParagraph(seeded("seed-para-1",
			"The Nutrition and Metabelism Laboratory is a cutting-edge research facility dedicated to understanding the complex relationships between diet, metabolism, and human health.")),
		document.NewHeading(2, seeded("seed-heading-2",
			"About Information")),
		document.NewParagraph(seeded("seed-para-2",
			"Our research focusses on understanding how nutrients affect metabolic pathways and overall health outcomes. We utilize state-of-the-art equipement to conduct our experiments.")),
		document.NewParagraph(seeded("seed-para-3",
			"For inqueries about our research or collaboration oportunities, please reach out to our administrative office.")),
	)
}

func main() {
	_ = godotenv.Load()

	commonlog.Configure(1, nil)

	logsDir := filepath.Join(os.TempDir(), "scrapsheet")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		log.Fatalf("Failed to create logs directory: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbPath := os.Getenv("SCRAPSHEET_DB")
	if dbPath == "" {
		dbPath = filepath.Join(logsDir, "scrapsheet.db")
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	manager := session.NewManager(st, cfg)

	docID, err := manager.CreateDocument("Nutrition Lab Notes", seedDocument())
	if err != nil {
		log.Fatalf("Failed to create document: %v", err)
	}
	fmt.Printf("Created document %s\n", docID)

	sess, err := manager.Open(docID)
	if err != nil {
		log.Fatalf("Failed to open document: %v", err)
	}

	eng := editor.New(sess.Content())
	sess.Attach(eng)

	// Background version garbage collection: one sweep on startup,
	// then periodic low-priority sweeps for as long as the app runs.
	sched := scheduler.NewScheduler(4)
	sched.Run()
	gc := scheduler.Task{
		Name: "version-cleanup",
		Execute: func() error {
			_, err := sess.CleanupOldVersions()
			return err
		},
	}
	sched.Schedule(gc)
	go sched.SchedulePeriodic(cfg.VersionValidity/100, gc)

	// Simulate a typing burst; autosave collapses it into periodic saves.
	fmt.Println("Typing...")
	for i := 0; i < 3; i++ {
		if _, err := eng.AppendParagraph(fmt.Sprintf("Draft note %d.", i+1)); err != nil {
			log.Fatalf("Failed to append paragraph: %v", err)
		}
		time.Sleep(300 * time.Millisecond)
	}
	time.Sleep(cfg.AutosaveInterval + cfg.TypingInactivity)

	state, savedAt := sess.State()
	fmt.Printf("Save state: %v (last saved %s)\n", state, utils.FormatTime12Hour(savedAt))

	// Run a proofread batch through the review workflow.
	provider := ai.NewStaticProvider()
	edits := provider.EditsFor(ai.ToolProofread)
	fmt.Printf("Proofread proposed %d edits\n", len(edits))

	rev := review.New(eng)
	rev.OnResolved(func(tree *document.Node) {
		sess.SetContent(tree)
		sess.MarkTyping()
		if err := sess.Autosave(); err != nil {
			log.Printf("Autosave after review failed: %v", err)
		}
	})

	if err := rev.Load(edits); err != nil {
		log.Fatalf("Failed to load review batch: %v", err)
	}

	// Accept the first two suggestions, skim the rest, keep what was
	// accepted.
	for i := 0; i < 2; i++ {
		rev.Accept(rev.Focused())
	}
	for {
		if _, ok := rev.Navigate(review.Next); !ok {
			break
		}
		if rev.Cursor() == 0 {
			break
		}
	}
	accepted := rev.ContinuePartial()
	fmt.Printf("Review finished: %d suggestions accepted\n", accepted)

	time.Sleep(cfg.AutosaveInterval + cfg.TypingInactivity)

	versions, err := st.GetVersions(docID)
	if err != nil {
		log.Fatalf("Failed to list versions: %v", err)
	}
	fmt.Println("Version history:")
	now := time.Now()
	for _, v := range versions {
		fmt.Printf("  %s  %s  (%s)\n", v.ID, v.Title, utils.FormatRelativeTime(v.Timestamp, now))
	}

	sched.Stop()
	manager.CloseAll()
	fmt.Println("Done.")
}
