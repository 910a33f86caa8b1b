package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/diablo/pkg/motion"
	"github.com/gwillem/diablo/pkg/sequencer"
)

const (
	headerHeight = 3 // title, status line, blank
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Axis colors - one per chart line
var axisColors = map[motion.Axis]string{
	motion.Forward: "196", // red
	motion.Left:    "208", // orange
	motion.Up:      "226", // yellow
	motion.Roll:    "46",  // green
	motion.Pitch:   "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// logWriter feeds slog output into the TUI. Lines are dropped when the
// TUI falls behind.
type logWriter struct {
	ch chan string
}

func newLogWriter(size int) *logWriter {
	return &logWriter{ch: make(chan string, size)}
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		select {
		case w.ch <- string(line):
		default:
		}
	}
	return len(p), nil
}

type runModel struct {
	seq    motion.Sequence
	seqr   *sequencer.Sequencer
	cancel context.CancelFunc
	logs   *logWriter
	done   chan sequencer.Outcome

	chart    *streamlinechart.Model
	width    int
	height   int
	lines    []string
	state    sequencer.State
	started  time.Time
	stopping bool
	outcome  *sequencer.Outcome
}

type stateMsg sequencer.State
type logMsg string
type doneMsg sequencer.Outcome

func waitForState(seqr *sequencer.Sequencer) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-seqr.States())
	}
}

func waitForLog(logs *logWriter) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs.ch)
	}
}

func waitForDone(done chan sequencer.Outcome) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(<-done)
	}
}

func newRunModel(seqr *sequencer.Sequencer, seq motion.Sequence, logs *logWriter, cancel context.CancelFunc, done chan sequencer.Outcome) runModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(motion.MinValue, motion.MaxValue),
	)
	for _, axis := range motion.AllAxes() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis]))
		chart.SetDataSetStyles(string(axis), runes.ThinLineStyle, style)
	}

	return runModel{
		seq:     seq,
		seqr:    seqr,
		cancel:  cancel,
		logs:    logs,
		done:    done,
		chart:   &chart,
		state:   sequencer.State{Phase: sequencer.Running},
		started: time.Now(),
	}
}

func (m *runModel) addLog(msg string) {
	m.lines = append(m.lines, msg)
	if len(m.lines) > maxLogs {
		m.lines = m.lines[len(m.lines)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *runModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.seqr),
		waitForLog(m.logs),
		waitForDone(m.done),
	)
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The sequencer publishes the stop frame; quit once it has.
			if !m.stopping {
				m.stopping = true
				m.addLog("stopping...")
				m.cancel()
			}
			return m, nil
		}

	case stateMsg:
		m.state = sequencer.State(msg)
		for _, axis := range motion.AllAxes() {
			m.chart.PushDataSet(string(axis), m.state.Frame.Axis(axis))
		}
		m.chart.DrawAll()
		return m, waitForState(m.seqr)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logs)

	case doneMsg:
		out := sequencer.Outcome(msg)
		m.outcome = &out
		return m, tea.Quit
	}

	return m, nil
}

func (m runModel) View() string {
	if m.outcome != nil {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Diablo " + m.seq.Name))
	sb.WriteString(fmt.Sprintf(" - %.0f Hz", float64(time.Second)/float64(m.seqr.Period())))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.lines) == 0 {
		logLines = statusStyle.Render("Press 'q' to stop")
	} else {
		logLines = strings.Join(m.lines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m runModel) statusLine() string {
	step := "starting"
	switch {
	case m.state.Step < 0:
		step = "stop"
	case !m.state.Timestamp.IsZero():
		step = fmt.Sprintf("step %d/%d", m.state.Step+1, m.seq.Len())
		if m.state.StepName != "" {
			step += " " + m.state.StepName
		}
	}
	elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
	return statusStyle.Render(fmt.Sprintf("%s  %s  %s / %s  %s",
		m.state.Phase, step, elapsed, m.seq.Duration(), m.state.Frame))
}

func renderLegend() string {
	var items []string
	for _, axis := range motion.AllAxes() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[axis])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(axis))
	}
	return strings.Join(items, "  ")
}

// runTUI runs seq in the background while showing the live chart. It
// returns once the sequencer has finished, stop frame included.
func runTUI(ctx context.Context, seqr *sequencer.Sequencer, seq motion.Sequence, logs *logWriter) (sequencer.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan sequencer.Outcome, 1)
	result := make(chan sequencer.Outcome, 1)
	go func() {
		out := seqr.Run(ctx, seq)
		result <- out
		done <- out
	}()

	p := tea.NewProgram(newRunModel(seqr, seq, logs, cancel, done), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		// The terminal is gone; still wait for the stop frame.
		cancel()
		return <-result, fmt.Errorf("run TUI: %w", err)
	}
	return <-result, nil
}
