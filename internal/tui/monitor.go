// SPDX-License-Identifier: MIT
//
// Package tui renders consumer output in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"spectra/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	animationFPS  = 60
	kickHighlight = 150 * time.Millisecond
)

var barChars = []rune(" ▁▂▃▄▅▆▇█")

// FrameMsg carries a consumer frame into the program.
type FrameMsg struct{ Frame *transport.Frame }

// KickMsg carries a detected beat into the program.
type KickMsg struct{ Kick *transport.Kick }

type animMsg time.Time

// StatusFunc supplies the footer line, e.g. pipeline counters.
type StatusFunc func() string

// Monitor is a bubbletea model drawing one bar graph per channel. Bars
// follow the latest frame through critically damped springs so a 30 fps
// consumer still animates smoothly.
type Monitor struct {
	title  string
	status StatusFunc

	width, height int

	channels int
	targets  []float64
	springs  springField

	peak     float64
	frames   uint64
	kicks    uint64
	lastKick time.Time
	paused   bool
	now      func() time.Time
}

// NewMonitor returns a Monitor titled title. status may be nil.
func NewMonitor(title string, status StatusFunc) *Monitor {
	return &Monitor{
		title:   title,
		status:  status,
		width:   80,
		height:  24,
		springs: newSpringField(animationFPS, 6.0, 1.0),
		now:     time.Now,
	}
}

func animate() tea.Cmd {
	return tea.Tick(time.Second/animationFPS, func(t time.Time) tea.Msg { return animMsg(t) })
}

// Init starts the animation loop.
func (m *Monitor) Init() tea.Cmd {
	return animate()
}

// Update handles frames, kicks, animation ticks, resizes and keys.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case FrameMsg:
		if m.paused || msg.Frame == nil {
			return m, nil
		}
		m.setFrame(msg.Frame)

	case KickMsg:
		m.kicks++
		m.lastKick = m.now()

	case animMsg:
		for i, target := range m.targets {
			m.springs.step(i, target)
		}
		return m, animate()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
		}
	}
	return m, nil
}

func (m *Monitor) setFrame(f *transport.Frame) {
	m.frames++
	m.peak = f.Peak
	m.channels = f.Channels
	if len(m.targets) != len(f.Values) {
		m.targets = make([]float64, len(f.Values))
	}
	copy(m.targets, f.Values)
	m.springs.resize(len(m.targets))
}

// View renders the bars, one block per channel.
func (m *Monitor) View() string {
	var sb strings.Builder

	title := titleStyle.Render(m.title)
	if m.now().Sub(m.lastKick) < kickHighlight {
		title += " " + kickStyle.Render("● KICK")
	}
	sb.WriteString(title)
	sb.WriteString("\n\n")

	if m.channels == 0 || len(m.springs.pos) == 0 {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n")
	} else {
		rows := max(1, (m.height-6)/m.channels)
		length := len(m.springs.pos) / m.channels
		for c := range m.channels {
			sb.WriteString(barStyle.Render(renderBars(m.springs.pos[c*length:(c+1)*length], m.width, rows)))
			sb.WriteString("\n")
		}
	}

	info := fmt.Sprintf("frames %d  peak %.3f  kicks %d", m.frames, m.peak, m.kicks)
	if m.paused {
		info += "  " + highlightStyle.Render("frozen")
	}
	if m.status != nil {
		info += "  " + m.status()
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(info))
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("space: freeze • q: quit"))
	return sb.String()
}

// renderBars draws values (0-1) as vertical bars using eighth blocks,
// resampling them to width columns.
func renderBars(values []float64, width, height int) string {
	width = max(1, min(width, len(values)))
	lines := make([]string, height)
	for row := range height {
		var line strings.Builder
		// Rows are drawn top down, each covers 8 sub-steps.
		floor := float64(height-1-row) * 8
		for col := range width {
			v := values[col*len(values)/width]
			level := min(1, max(0, v))*float64(height*8) - floor
			idx := int(min(8, max(0, level)))
			line.WriteRune(barChars[idx])
		}
		lines[row] = line.String()
	}
	return strings.Join(lines, "\n")
}
