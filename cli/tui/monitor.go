package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cohelm/brrr/audit"
	"github.com/cohelm/brrr/metrics"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/runtime"
)

// keyMap defines key bindings shared by every model in this package.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RefreshInterval is how often MonitorModel polls its backends.
const RefreshInterval = 1 * time.Second

// tickMsg fires RefreshInterval and requests a new snapshot.
type tickMsg time.Time

// snapshotMsg carries the result of a single poll.
type snapshotMsg struct {
	info        queue.Info
	workerStats runtime.Stats
	metricsSnap *metrics.Snapshot
	auditStats  *audit.Stats
	err         error
}

// MonitorModel is a Bubble Tea model that polls a queue and an optional
// worker/metrics/audit trio on a ticker, and renders their counters.
// Grounded on original_source/brrr_demo.py's monitor command (an
// asyncio.sleep(1) polling loop around queue depth) and cli/tui/stats.go's
// stat-box layout.
type MonitorModel struct {
	queue   queue.Queue
	worker  *runtime.Worker
	metrics *metrics.Collector
	audit   *audit.Recorder

	width, height int
	quitting      bool

	last snapshotMsg
	polls int
}

// NewMonitorModel creates a monitor model polling q, and, when non-nil,
// w's Stats, w.Metrics's Snapshot, and w.Audit's Stats.
func NewMonitorModel(q queue.Queue, w *runtime.Worker) MonitorModel {
	m := MonitorModel{queue: q, worker: w}
	if w != nil {
		m.metrics = w.Metrics
		m.audit = w.Audit
	}
	return m
}

// Init implements tea.Model.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) refreshCmd() tea.Cmd {
	q := m.queue
	w := m.worker
	mc := m.metrics
	ar := m.audit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		info, err := q.GetInfo(ctx)
		snap := snapshotMsg{info: info, err: err}
		if w != nil {
			snap.workerStats = w.Stats()
		}
		if mc != nil {
			s := mc.Snapshot()
			snap.metricsSnap = &s
		}
		if ar != nil {
			s := ar.Stats()
			snap.auditStats = &s
		}
		return snap
	}
}

// Update implements tea.Model.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, m.refreshCmd()

	case snapshotMsg:
		m.last = msg
		m.polls++
		return m, tickCmd()
	}

	return m, nil
}

// View implements tea.Model.
func (m MonitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b []string
	b = append(b, TitleStyle.Render("brrr monitor"))

	if m.last.err != nil {
		b = append(b, ErrorStyle.Render(fmt.Sprintf("queue.GetInfo failed: %v", m.last.err)))
	} else {
		b = append(b, lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Pending", m.last.info.NumMessages, highlightColor),
		))
	}

	if m.worker != nil {
		b = append(b, "")
		b = append(b, lipgloss.NewStyle().Bold(true).Foreground(mutedColor).Render("worker"))
		b = append(b, lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Processed", int(m.last.workerStats.MessagesProcessed), lipgloss.Color("#3B82F6")),
			m.renderStatBox("Resolved", int(m.last.workerStats.ValuesWritten), successColor),
			m.renderStatBox("Deferred", int(m.last.workerStats.Defers), warningColor),
			m.renderStatBox("Fanned Out", int(m.last.workerStats.FanOuts), lipgloss.Color("#3B82F6")),
		))
	}

	if snap := m.last.metricsSnap; snap != nil {
		b = append(b, "")
		b = append(b, lipgloss.NewStyle().Bold(true).Foreground(mutedColor).Render("metrics"))
		b = append(b, lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Failed", int(snap.CallsFailed), errorColor),
			m.renderStatBox("Poison", int(snap.MessagesPoison), errorColor),
			m.renderStatBox("Store Errs", int(snap.StoreErrors), errorColor),
			m.renderStatBox("Queue Errs", int(snap.QueueErrors), errorColor),
		))
	}

	if stats := m.last.auditStats; stats != nil {
		b = append(b, "")
		b = append(b, lipgloss.NewStyle().Bold(true).Foreground(mutedColor).Render("audit"))
		b = append(b, lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderStatBox("Recorded", int(stats.Recorded), successColor),
			m.renderStatBox("Dropped", int(stats.Dropped), warningColor),
			m.renderStatBox("Flushed", int(stats.Flushed), successColor),
		))
	}

	content := ""
	for i, part := range b {
		if i > 0 {
			content += "\n"
		}
		content += part
	}

	help := HelpStyle.Render(fmt.Sprintf("poll #%d · refreshes every %s · press q to quit", m.polls, RefreshInterval))
	return content + "\n" + help
}

func (m MonitorModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return boxStyle.Render(content)
}

// RunMonitorTUI runs the monitor dashboard until the user quits.
func RunMonitorTUI(q queue.Queue, w *runtime.Worker) error {
	model := NewMonitorModel(q, w)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunMonitorPlain is the --no-tui / non-terminal fallback: it polls the
// same backends on the same interval and prints one line per refresh,
// mirroring original_source/brrr_demo.py's plain pprint loop. It runs
// until ctx is canceled.
func RunMonitorPlain(ctx context.Context, q queue.Queue, w *runtime.Worker) error {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	poll := func() error {
		pollCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		info, err := q.GetInfo(pollCtx)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("pending=%d", info.NumMessages)
		if w != nil {
			s := w.Stats()
			line += fmt.Sprintf(" processed=%d resolved=%d deferred=%d fanned_out=%d",
				s.MessagesProcessed, s.ValuesWritten, s.Defers, s.FanOuts)
		}
		fmt.Println(line)
		return nil
	}

	if err := poll(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				return err
			}
		}
	}
}
