// Package tui renders a live fuzzing status view with bubbletea while the
// console is a terminal. It is disabled under --quiet or when stdout is
// not a tty, mirroring the teacher's own quiet/verbose CLI modes.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fuzzware-fuzzer/hoedur-go/internal/statistics"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	crashStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// Snapshot is the subset of a running fuzzer's state the TUI needs to
// render one frame, decoupled from internal/fuzzer so this package has no
// import cycle back to the loop it is watching.
type Snapshot struct {
	Name       string
	Executions uint64
	ExecPerSec float64
	CorpusSize int
	Features   int
	Crashes    uint64
	Timeouts   uint64
	Minimized  uint64
	Elapsed    time.Duration
}

// SnapshotFunc is polled once per tick to refresh the displayed state.
type SnapshotFunc func() Snapshot

type tickMsg time.Time

type model struct {
	spinner  spinner.Model
	snapshot SnapshotFunc
	current  Snapshot
	quitting bool
}

func newModel(snapshot SnapshotFunc) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = valueStyle
	return model{spinner: s, snapshot: snapshot}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.current = m.snapshot()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	s := m.current
	execPerSec := fmt.Sprintf("%.1f", s.ExecPerSec)

	var crashLine string
	if s.Crashes > 0 {
		crashLine = crashStyle.Render(fmt.Sprintf("%d crashes", s.Crashes))
	} else {
		crashLine = labelStyle.Render("0 crashes")
	}

	return fmt.Sprintf(
		"%s %s  %s %s exec/s  %s %s  %s %s  %s %s  %s %s  %s\n",
		m.spinner.View(), valueStyle.Render(s.Name),
		labelStyle.Render("rate"), valueStyle.Render(execPerSec),
		labelStyle.Render("corpus"), valueStyle.Render(fmt.Sprintf("%d", s.CorpusSize)),
		labelStyle.Render("features"), valueStyle.Render(fmt.Sprintf("%d", s.Features)),
		labelStyle.Render("minimized"), valueStyle.Render(fmt.Sprintf("%d", s.Minimized)),
		labelStyle.Render("elapsed"), valueStyle.Render(s.Elapsed.Round(time.Second).String()),
		crashLine,
	)
}

// Run blocks rendering the live status view until the user quits (q,
// ctrl+c, esc) or stop is closed externally by the fuzzer loop finishing.
func Run(snapshot SnapshotFunc, stop <-chan struct{}) error {
	p := tea.NewProgram(newModel(snapshot))

	go func() {
		<-stop
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

// RatePerSecond computes an executions/sec figure from a window count and
// the interval it was collected over, used by the fuzzer loop to build a
// Snapshot between ticks without statistics.Statistics knowing about the
// TUI at all.
func RatePerSecond(count uint64, interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(count) / interval.Seconds()
}

// FromStatistics builds a Snapshot from a Statistics tracker's cumulative
// counters and a previously-computed rate, keeping statistics.Statistics
// free of any TUI-shaped type.
func FromStatistics(name string, s *statistics.Statistics, execPerSec float64, corpusSize, features int, now time.Time) Snapshot {
	return Snapshot{
		Name:       name,
		Executions: s.Executions(),
		ExecPerSec: execPerSec,
		CorpusSize: corpusSize,
		Features:   features,
		Crashes:    s.Crashes(),
		Timeouts:   s.Timeouts(),
		Minimized:  s.Minimized(),
		Elapsed:    s.Elapsed(now),
	}
}
