package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	prev := MustNew(
		File{Path: "index.html", Content: "a\nb\nc\n"},
		File{Path: "old.js", Content: "x\n"},
	)
	next := MustNew(
		File{Path: "index.html", Content: "a\nB\nc\nd\n"},
		File{Path: "new.css", Content: "body{}\n"},
	)

	s := Diff(prev, next)
	assert.Equal(t, []string{"new.css"}, s.Added)
	assert.Equal(t, []string{"old.js"}, s.Removed)
	assert.Equal(t, []string{"index.html"}, s.Modified)
	assert.Equal(t, 3, s.LinesAdded)
	assert.Equal(t, 2, s.LinesRemoved)
	assert.Contains(t, s.String(), "1 added")
}

func TestDiffIdentical(t *testing.T) {
	p := MustNew(File{Path: "a.js", Content: "1"})
	s := Diff(p, p)
	assert.True(t, s.Empty())
	assert.Equal(t, "no file changes", s.String())
}
