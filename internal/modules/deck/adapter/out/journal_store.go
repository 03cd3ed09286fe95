package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"focusdeck/internal/modules/deck/domain"
	deckout "focusdeck/internal/modules/deck/port/out"
	"focusdeck/internal/platform/markdown"
	"focusdeck/internal/platform/slug"
)

const (
	journalIndex = "index.md"
	indexBlock   = "sessions"
)

// MarkdownJournal writes one note per session under
// <dir>/YYYY/MM/DD/HHMMSS-<site>-<id>.md and keeps a generated list of the
// day's sessions in that day's index.md.
type MarkdownJournal struct {
	dir string
}

func NewMarkdownJournal(dir string) deckout.JournalStore {
	return &MarkdownJournal{dir: dir}
}

func (j *MarkdownJournal) Write(_ context.Context, rec domain.SessionRecord) (string, error) {
	started := rec.StartedAt.Local()
	dayDir := filepath.Join(j.dir, started.Format("2006"), started.Format("01"), started.Format("02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("create journal dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s.md", started.Format("150405"), slug.MakeMax(rec.AdapterID, 24), slug.Make(rec.ID))
	path := filepath.Join(dayDir, name)

	note := markdown.Note{Meta: journalMeta(rec), Body: journalBody(rec)}
	if existing, err := os.ReadFile(path); err == nil {
		// Keep anything the user wrote below the generated summary.
		if parsed, err := markdown.Parse(string(existing)); err == nil {
			note.Body = markdown.ReplaceBlock(parsed.Body, "summary", summaryBlock(rec))
		}
	}
	rendered, err := note.Render()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write journal note: %w", err)
	}
	if err := j.refreshIndex(dayDir, started); err != nil {
		return path, err
	}
	return path, nil
}

func journalMeta(rec domain.SessionRecord) map[string]any {
	return map[string]any{
		"schema_version": domain.SchemaVersion,
		"session_id":     rec.ID,
		"site":           rec.AdapterID,
		"started_at":     rec.StartedAt.Format(time.RFC3339),
		"ended_at":       rec.EndedAt.Format(time.RFC3339),
		"reason":         string(rec.Summary.Reason),
		"viewed":         rec.Summary.ViewedCount,
		"duration_ms":    rec.Summary.DurationMs,
		"active_ms":      rec.Stats.ActiveMs,
		"actions": map[string]any{
			"not_interested": rec.Stats.Actions.NotInterested,
			"bookmarked":     rec.Stats.Actions.Bookmarked,
			"opened_details": rec.Stats.Actions.OpenedDetails,
		},
	}
}

func journalBody(rec domain.SessionRecord) string {
	title := fmt.Sprintf("# Focus session on %s\n\n", rec.AdapterID)
	return markdown.ReplaceBlock(title, "summary", summaryBlock(rec))
}

func summaryBlock(rec domain.SessionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Ended: %s\n", rec.Summary.Reason)
	fmt.Fprintf(&b, "- Viewed: %d posts\n", rec.Summary.ViewedCount)
	fmt.Fprintf(&b, "- Duration: %s (active %s)\n",
		time.Duration(rec.Summary.DurationMs)*time.Millisecond,
		time.Duration(rec.Stats.ActiveMs)*time.Millisecond)
	a := rec.Stats.Actions
	fmt.Fprintf(&b, "- Actions: %d hidden, %d bookmarked, %d opened\n", a.NotInterested, a.Bookmarked, a.OpenedDetails)
	if len(rec.Stats.ViewedPostIDs) > 0 {
		b.WriteString("\n## Posts\n\n")
		for _, id := range rec.Stats.ViewedPostIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}
	return b.String()
}

func (j *MarkdownJournal) refreshIndex(dayDir string, day time.Time) error {
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return fmt.Errorf("list journal day: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == journalIndex || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	var list strings.Builder
	for _, name := range names {
		fmt.Fprintf(&list, "- [%s](%s)\n", strings.TrimSuffix(name, ".md"), name)
	}

	path := filepath.Join(dayDir, journalIndex)
	body := fmt.Sprintf("# Sessions on %s\n", day.Format(domain.DateKeyLayout))
	if existing, err := os.ReadFile(path); err == nil {
		body = string(existing)
	}
	body = markdown.ReplaceBlock(body, indexBlock, list.String())
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write journal index: %w", err)
	}
	return nil
}
