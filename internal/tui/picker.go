// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"slices"
	"strings"

	"spectra/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	listScreen screen = iota
	rateScreen
)

var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the input device and sample rate chosen in the picker.
type Selection struct {
	Device     audio.Device
	SampleRate float64
}

type devicesMsg struct{ devices []audio.Device }

type errMsg struct{ err error }

// DevicePicker lists the host's input devices and lets the user pick one
// along with a sample rate.
type DevicePicker struct {
	fetch func() ([]audio.Device, error)

	devices  []audio.Device
	cursor   int
	viewport viewport.Model
	ready    bool
	err      error
	active   screen

	rates     []float64
	rateIndex int

	selection *Selection
}

// NewDevicePicker returns a picker reading devices from audio.HostDevices.
func NewDevicePicker() *DevicePicker {
	return &DevicePicker{fetch: audio.HostDevices}
}

// Selection returns the confirmed choice, or nil if the user quit.
func (m *DevicePicker) Selection() *Selection {
	return m.selection
}

func (m *DevicePicker) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{inputDevices(devices)}
	}
}

func inputDevices(devices []audio.Device) []audio.Device {
	return slices.DeleteFunc(slices.Clone(devices), func(d audio.Device) bool {
		return d.MaxInputChannels == 0
	})
}

func (m *DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if m.err != nil {
			return m, tea.Quit
		}
		if done := m.handleKey(msg); done {
			return m, tea.Quit
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleKey moves the cursor on the active screen. It reports true once a
// selection is confirmed.
func (m *DevicePicker) handleKey(msg tea.KeyMsg) bool {
	switch m.active {
	case listScreen:
		switch {
		case key.Matches(msg, keys.Up):
			m.cursor = max(0, m.cursor-1)
		case key.Matches(msg, keys.Down):
			m.cursor = max(0, min(len(m.devices)-1, m.cursor+1))
		case key.Matches(msg, keys.Enter):
			if len(m.devices) == 0 {
				return false
			}
			m.active = rateScreen
			m.rates = ratesFor(m.devices[m.cursor])
			m.rateIndex = max(0, slices.Index(m.rates, m.devices[m.cursor].DefaultSampleRate))
		}

	case rateScreen:
		switch {
		case key.Matches(msg, keys.Back):
			m.active = listScreen
		case key.Matches(msg, keys.Up):
			m.rateIndex = max(0, m.rateIndex-1)
		case key.Matches(msg, keys.Down):
			m.rateIndex = min(len(m.rates)-1, m.rateIndex+1)
		case key.Matches(msg, keys.Enter):
			m.selection = &Selection{Device: m.devices[m.cursor], SampleRate: m.rates[m.rateIndex]}
			return true
		}
	}
	return false
}

// ratesFor returns the common rates plus the device default, sorted.
func ratesFor(d audio.Device) []float64 {
	rates := slices.Clone(commonSampleRates)
	if d.DefaultSampleRate > 0 && !slices.Contains(rates, d.DefaultSampleRate) {
		rates = append(rates, d.DefaultSampleRate)
		slices.Sort(rates)
	}
	return rates
}

func (m *DevicePicker) refresh() {
	if !m.ready {
		return
	}
	if m.active == rateScreen {
		m.viewport.SetContent(m.renderRates())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

func (m *DevicePicker) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	title := titleStyle.Render("Input Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Choose rate • q: Quit")
	if m.active == rateScreen {
		title = titleStyle.Render("Sample Rate")
		help = infoStyle.Render("↑/↓: Change • Enter: Use • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m *DevicePicker) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    Input channels: %d, Default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *DevicePicker) renderRates() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s\n\n", m.devices[m.cursor].Name)
	for i, rate := range m.rates {
		marker := " "
		if i == m.rateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.rateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevice runs the picker full screen and returns the choice, or nil if
// the user quit without choosing.
func PickDevice() (*Selection, error) {
	m := NewDevicePicker()
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.Selection(), nil
}
