// Package events streams pipeline progress as typed newline-delimited JSON lines.
package events

import (
	"time"

	"webforge/internal/project"
)

// LineType is the discriminator of a stream line.
type LineType string

const (
	LineEvent    LineType = "event"
	LineFile     LineType = "file"
	LineMetadata LineType = "metadata"
	LineError    LineType = "error"
	LineDone     LineType = "done"
)

// Stage event types.
const (
	StageIngest   = "ingest"
	StageSpec     = "spec"
	StageBuild    = "build"
	StagePolicy   = "policy"
	StageValidate = "validate"
	StageRuntime  = "runtime"
	StageRepair   = "repair"
	StageRollback = "rollback"
	StageFinalize = "finalize"
	StageComplete = "complete"
	StageWarning  = "warning"
)

// Event is a stage transition.
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// Line is one NDJSON line of the stream.
type Line struct {
	Type     LineType      `json:"type"`
	Event    *Event        `json:"event,omitempty"`
	File     *project.File `json:"file,omitempty"`
	Metadata any           `json:"metadata,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Terminal reports whether the line ends the stream.
func (l Line) Terminal() bool {
	return l.Type == LineDone || l.Type == LineError
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
