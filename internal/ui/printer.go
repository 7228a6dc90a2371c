package ui

import (
	"fmt"
	"io"
	"strings"

	"webforge/internal/events"
)

// Printer writes one styled line per stream line.
type Printer struct {
	w       io.Writer
	styles  *Styles
	verbose bool
}

// NewPrinter creates a printer. Verbose also lists every streamed file.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, styles: DefaultStyles(), verbose: verbose}
}

// Consume prints every line until the stream closes.
func (p *Printer) Consume(lines <-chan events.Line) *Outcome {
	out := &Outcome{}
	files := 0
	for line := range lines {
		out.Add(line)
		if line.Type == events.LineFile {
			files++
			if !p.verbose {
				continue
			}
		}
		if text := p.Format(line); text != "" {
			fmt.Fprintln(p.w, text)
		}
	}
	if !p.verbose && files > 0 {
		fmt.Fprintln(p.w, p.styles.Dim.Render(fmt.Sprintf("%s %d files received", MessageIcons["file"], files)))
	}
	return out
}

// Format renders a single line, or "" for lines that print nothing.
func (p *Printer) Format(line events.Line) string {
	s := p.styles
	switch line.Type {
	case events.LineEvent:
		ev := line.Event
		if ev == nil {
			return ""
		}
		stage := s.Stage.Foreground(StageColor(ev.Type)).Render(ev.Type)
		progress := s.Progress.Render(fmt.Sprintf("%d%%", ev.Progress))
		msg := s.Message.Render(ev.Message)
		if ev.Type == events.StageWarning {
			msg = s.Warning.Render(ev.Message)
		}
		return strings.Join([]string{progress, StageIcon(ev.Type), stage, msg}, " ")
	case events.LineFile:
		if line.File == nil {
			return ""
		}
		return s.File.Render(fmt.Sprintf("  %s %s", MessageIcons["file"], line.File.Path)) +
			s.Dim.Render(fmt.Sprintf(" (%s, %d bytes)", line.File.Language, len(line.File.Content)))
	case events.LineError:
		return s.Error.Render(MessageIcons["error"] + " " + line.Error)
	case events.LineDone:
		return s.Success.Render(MessageIcons["success"] + " done")
	}
	return ""
}
