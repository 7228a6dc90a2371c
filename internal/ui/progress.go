package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"webforge/internal/events"
)

const barWidth = 30

// lineMsg carries one stream line into the program.
type lineMsg events.Line

// streamClosedMsg is sent once the stream is drained.
type streamClosedMsg struct{}

// ProgressModel shows a spinner, a progress bar and the recent stage log
// while a generation runs.
type ProgressModel struct {
	lines   <-chan events.Line
	spinner spinner.Model
	styles  *Styles
	outcome *Outcome
	printer *Printer

	stage    string
	message  string
	progress int
	log      []string
	started  time.Time
	width    int
	finished bool
	quit     bool
}

// NewProgressModel creates a model that drains lines.
func NewProgressModel(lines <-chan events.Line) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().Title
	return ProgressModel{
		lines:   lines,
		spinner: s,
		styles:  DefaultStyles(),
		outcome: &Outcome{},
		printer: &Printer{styles: DefaultStyles()},
		started: time.Now(),
		width:   80,
	}
}

func waitForLine(lines <-chan events.Line) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return streamClosedMsg{}
		}
		return lineMsg(line)
	}
}

// Init starts the spinner and the stream reader.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLine(m.lines))
}

// Update handles stream lines, ticks and keys.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case lineMsg:
		line := events.Line(msg)
		m.outcome.Add(line)
		if line.Type == events.LineEvent && line.Event != nil {
			m.stage = line.Event.Type
			m.message = line.Event.Message
			m.progress = line.Event.Progress
			m.log = append(m.log, m.printer.Format(line))
			if len(m.log) > 8 {
				m.log = m.log[len(m.log)-8:]
			}
		}
		return m, waitForLine(m.lines)
	case streamClosedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the current state.
func (m ProgressModel) View() string {
	s := m.styles
	var b strings.Builder
	b.WriteString(s.Title.Render("webforge") + "\n\n")
	for _, l := range m.log {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n")

	filled := m.progress * barWidth / 100
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
	elapsed := time.Since(m.started).Round(time.Second)

	if m.finished {
		b.WriteString(s.Bar.Render(bar) + s.Dim.Render(fmt.Sprintf(" %d%% %s", m.progress, elapsed)) + "\n")
		return b.String()
	}
	b.WriteString(m.spinner.View() + " " + s.Bar.Render(bar) +
		s.Dim.Render(fmt.Sprintf(" %3d%% %s %s", m.progress, StageIcon(m.stage), elapsed)) + "\n")
	b.WriteString(s.Dim.Render("q to detach; the run keeps going") + "\n")
	return b.String()
}

// RunProgress runs the TUI until the stream closes or the user quits. On quit
// the remaining lines are still drained so the outcome is complete.
func RunProgress(lines <-chan events.Line) (*Outcome, error) {
	final, err := tea.NewProgram(NewProgressModel(lines)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(ProgressModel)
	if m.quit {
		for line := range lines {
			m.outcome.Add(line)
		}
	}
	return m.outcome, nil
}
