package ui

import (
	"webforge/internal/events"
	"webforge/internal/pipeline"
	"webforge/internal/project"
)

// Outcome accumulates what a stream delivered.
type Outcome struct {
	Files    []project.File
	Metadata *pipeline.Metadata
	Error    string
	Done     bool
}

// Add records one line.
func (o *Outcome) Add(line events.Line) {
	switch line.Type {
	case events.LineFile:
		if line.File != nil {
			o.Files = append(o.Files, *line.File)
		}
	case events.LineMetadata:
		if m, ok := line.Metadata.(*pipeline.Metadata); ok {
			o.Metadata = m
		}
	case events.LineError:
		o.Error = line.Error
	case events.LineDone:
		o.Done = true
	}
}
