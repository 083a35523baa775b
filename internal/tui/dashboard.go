// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fdaudio/internal/pipeline"
)

// ChannelSink implements pipeline.StatsSink by forwarding each record to
// a channel the dashboard model reads from. Send never blocks: a full
// channel (the dashboard is slower than the ~1Hz reporting cadence, or
// nobody is listening) drops the record rather than stalling the
// processing loop.
type ChannelSink struct {
	ch chan pipeline.Stats
}

// NewChannelSink creates a ChannelSink with room for a few pending
// records, enough to absorb a slow UI redraw without dropping.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{ch: make(chan pipeline.Stats, 4)}
}

// Send implements pipeline.StatsSink.
func (c *ChannelSink) Send(data any) error {
	stats, ok := data.(pipeline.Stats)
	if !ok {
		return fmt.Errorf("tui: ChannelSink: unsupported payload type %T", data)
	}
	select {
	case c.ch <- stats:
	default:
	}
	return nil
}

// Close is a no-op; the channel is left for the garbage collector once
// nothing reads from or writes to it.
func (c *ChannelSink) Close() error { return nil }

// Chan returns the underlying channel for StartDashboard to read from.
func (c *ChannelSink) Chan() chan pipeline.Stats { return c.ch }

var _ pipeline.StatsSink = (*ChannelSink)(nil)

type statsMsg pipeline.Stats

func waitForStats(ch <-chan pipeline.Stats) tea.Cmd {
	return func() tea.Msg {
		return statsMsg(<-ch)
	}
}

// DashboardModel is the bubbletea model for the live pipeline dashboard:
// ring occupancy and cumulative overflow/underflow counters, refreshed
// every time a new pipeline.Stats record arrives on statsCh.
type DashboardModel struct {
	statsCh  chan pipeline.Stats
	stats    pipeline.Stats
	haveData bool
	viewport viewport.Model
	ready    bool
}

// NewDashboardModel constructs a DashboardModel reading from ch.
func NewDashboardModel(ch chan pipeline.Stats) DashboardModel {
	return DashboardModel{statsCh: ch}
}

// Init starts listening for Stats records.
func (m DashboardModel) Init() tea.Cmd {
	return waitForStats(m.statsCh)
}

// Update handles window resizes, incoming Stats records, and quit keys.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderStats())

	case statsMsg:
		m.stats = pipeline.Stats(msg)
		m.haveData = true
		if m.ready {
			m.viewport.SetContent(m.renderStats())
		}
		return m, waitForStats(m.statsCh)

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Pipeline Diagnostics")
	help := infoStyle.Render("q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DashboardModel) renderStats() string {
	if !m.haveData {
		return "Waiting for the first diagnostic record..."
	}
	s := m.stats
	return fmt.Sprintf(
		"Input ring fill:    %d\n"+
			"Output ring fill:   %d\n"+
			"Overflows (total):  %d\n"+
			"Underflows (total): %d\n\n"+
			"STFT hops this tick: %d\n"+
			"STFT hops total:     %d\n"+
			"Frames pushed/tick:  %d\n"+
			"Frames popped/tick:  %d\n",
		s.InputRingFill, s.OutputRingFill, s.Overflows, s.Underflows,
		s.HopsDelta, s.HopsTotal, s.FramesPushedDelt, s.FramesPoppedDelt,
	)
}

// StartDashboard runs the dashboard's event loop until the user quits.
// Call it on the main goroutine; it blocks for the lifetime of the UI.
func StartDashboard(ch chan pipeline.Stats) error {
	p := tea.NewProgram(NewDashboardModel(ch), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
