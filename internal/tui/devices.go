// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"strings"

	"microfeatures/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the picker is closed without choosing.
var ErrCancelled = errors.New("device selection cancelled")

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	Name       string
	LowLatency bool
}

var latencyModes = []string{"High (stable)", "Low (responsive)"}

type deviceKeys struct {
	Quit, Up, Down, Enter, Back key.Binding
}

var keys = deviceKeys{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:    key.NewBinding(key.WithKeys("up", "k")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Back:  key.NewBinding(key.WithKeys("esc")),
}

// DeviceListModel represents the Bubble Tea model for picking an input device
type DeviceListModel struct {
	load          func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	status        string
	activeScreen  ScreenType

	latencyIndex int
	selection    *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker that lists devices with load.
func NewDeviceListModel(load func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		load:         load,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		devices, err := load()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Selection returns the confirmed choice, if any.
func (m DeviceListModel) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		// Start on the first device that can capture.
		for i, d := range m.devices {
			if d.IsInput() {
				m.selectedIndex = i
				break
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) || m.err != nil {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keys.Up):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
				m.status = ""
			case key.Matches(msg, keys.Down):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
				m.status = ""
			case key.Matches(msg, keys.Enter):
				if len(m.devices) == 0 {
					break
				}
				if !m.devices[m.selectedIndex].IsInput() {
					m.status = "device has no input channels"
					break
				}
				m.activeScreen = ConfigScreen
				m.latencyIndex = 0
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, keys.Back):
				m.activeScreen = ListScreen
			case key.Matches(msg, keys.Up):
				if m.latencyIndex > 0 {
					m.latencyIndex--
				}
			case key.Matches(msg, keys.Down):
				if m.latencyIndex < len(latencyModes)-1 {
					m.latencyIndex++
				}
			case key.Matches(msg, keys.Enter):
				d := m.devices[m.selectedIndex]
				m.selection = &Selection{DeviceID: d.ID, Name: d.Name, LowLatency: m.latencyIndex == 1}
				return m, tea.Quit
			}
		}
		m.refresh()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderDeviceConfig())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	} else {
		title = titleStyle.Render("Capture Settings")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Start • Esc: Back • q: Quit")
	}
	if m.status != "" {
		help = warnStyle.Render(m.status) + "\n" + help
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Type())
		info += fmt.Sprintf("    Input channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxInputChannels, device.DefaultSampleRate)

		switch {
		case i == m.selectedIndex:
			info = highlightStyle.Render(info)
		case !device.IsInput():
			info = dimStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Device: %s\n", device.Name)
	fmt.Fprintf(&sb, "Capture: 16-bit mono, resampled by the device to the frontend rate\n\n")
	sb.WriteString("Latency:\n")

	for i, mode := range latencyModes {
		marker := " "
		if i == m.latencyIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %s\n", marker, mode)
		if i == m.latencyIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	fmt.Fprintf(&sb, "\n    low %.1fms, high %.1fms\n",
		device.LowInputLatency.Seconds()*1000, device.HighInputLatency.Seconds()*1000)
	return sb.String()
}

// PickDevice runs the picker and returns the chosen input device.
func PickDevice(load func() ([]audio.Device, error)) (Selection, error) {
	p := tea.NewProgram(NewDeviceListModel(load), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, err
	}
	m := final.(DeviceListModel)
	if m.err != nil {
		return Selection{}, m.err
	}
	sel, ok := m.Selection()
	if !ok {
		return Selection{}, ErrCancelled
	}
	return sel, nil
}
