package project

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSummary describes how one snapshot changed into another.
type DiffSummary struct {
	Added        []string `json:"added,omitempty"`
	Removed      []string `json:"removed,omitempty"`
	Modified     []string `json:"modified,omitempty"`
	LinesAdded   int      `json:"linesAdded"`
	LinesRemoved int      `json:"linesRemoved"`
}

// Diff compares two snapshots file by file with a line-level diff.
func Diff(prev, next *Project) DiffSummary {
	var s DiffSummary
	dmp := diffmatchpatch.New()

	for _, f := range next.Files() {
		old, ok := prev.Get(f.Path)
		if !ok {
			s.Added = append(s.Added, f.Path)
			s.LinesAdded += countLines(f.Content)
			continue
		}
		if old.Content == f.Content {
			continue
		}
		s.Modified = append(s.Modified, f.Path)

		a, b, lines := dmp.DiffLinesToChars(old.Content, f.Content)
		diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
		for _, d := range diffs {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				s.LinesAdded += countLines(d.Text)
			case diffmatchpatch.DiffDelete:
				s.LinesRemoved += countLines(d.Text)
			}
		}
	}
	for _, f := range prev.Files() {
		if !next.Has(f.Path) {
			s.Removed = append(s.Removed, f.Path)
			s.LinesRemoved += countLines(f.Content)
		}
	}
	return s
}

// Empty reports whether nothing changed.
func (s DiffSummary) Empty() bool {
	return len(s.Added) == 0 && len(s.Removed) == 0 && len(s.Modified) == 0
}

func (s DiffSummary) String() string {
	if s.Empty() {
		return "no file changes"
	}
	return fmt.Sprintf("%d added, %d modified, %d removed (+%d/-%d lines)",
		len(s.Added), len(s.Modified), len(s.Removed), s.LinesAdded, s.LinesRemoved)
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
