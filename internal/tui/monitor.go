// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"strings"

	"microfeatures/internal/audio"
	"microfeatures/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// sparkRunes map a normalized value to a block height.
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

const (
	labelWidth   = 5  // "c00 "
	valueWidth   = 8  // " 123.45"
	minBarWidth  = 10
	defaultWidth = 80
	historyRows  = 8
)

type monitorKeys struct {
	Quit, Pause, Rescale key.Binding
}

var mkeys = monitorKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	Pause:   key.NewBinding(key.WithKeys("p", " ")),
	Rescale: key.NewBinding(key.WithKeys("r")),
}

type frameMsg transport.FeatureFrame

type framesClosedMsg struct{}

// MonitorModel shows the latest feature frame as bars plus a short
// spectrogram history.
type MonitorModel struct {
	frames     <-chan transport.FeatureFrame
	stats      func() audio.Stats
	sampleRate int

	latest  transport.FeatureFrame
	history [][]float32
	ceiling float64 // bar full scale, tracks the largest value seen
	paused  bool
	closed  bool
	width   int
	height  int
}

// NewMonitorModel reads frames from ch. stats may be nil.
func NewMonitorModel(ch <-chan transport.FeatureFrame, stats func() audio.Stats, sampleRate int) MonitorModel {
	return MonitorModel{
		frames:     ch,
		stats:      stats,
		sampleRate: sampleRate,
		ceiling:    1,
		width:      defaultWidth,
	}
}

func waitForFrame(ch <-chan transport.FeatureFrame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg(f)
	}
}

func (m MonitorModel) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case frameMsg:
		if !m.paused {
			m.latest = transport.FeatureFrame(msg)
			for _, v := range m.latest.Features {
				m.ceiling = max(m.ceiling, float64(v))
			}
			m.history = append(m.history, m.latest.Features)
			if len(m.history) > historyRows {
				m.history = m.history[len(m.history)-historyRows:]
			}
		}
		return m, waitForFrame(m.frames)

	case framesClosedMsg:
		m.closed = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, mkeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, mkeys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, mkeys.Rescale):
			m.ceiling = 1
			for _, v := range m.latest.Features {
				m.ceiling = max(m.ceiling, float64(v))
			}
		}
	}
	return m, nil
}

func (m MonitorModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Feature Monitor"))
	sb.WriteString("\n\n")

	if len(m.latest.Features) == 0 {
		sb.WriteString(dimStyle.Render("waiting for the first frame..."))
		sb.WriteString("\n")
	} else {
		seconds := 0.0
		if m.sampleRate > 0 {
			seconds = float64(m.latest.SampleOffset) / float64(m.sampleRate)
		}
		fmt.Fprintf(&sb, "frame %d  t=%.2fs  scale %.1f", m.latest.Sequence, seconds, m.ceiling)
		if m.paused {
			sb.WriteString("  " + warnStyle.Render("PAUSED"))
		}
		sb.WriteString("\n\n")
		sb.WriteString(m.renderBars())
		sb.WriteString("\n")
		sb.WriteString(m.renderHistory())
	}

	if m.stats != nil {
		s := m.stats()
		sb.WriteString("\n")
		sb.WriteString(infoStyle.Render(fmt.Sprintf("frames %d  published %d  gated %d  dropped %d",
			s.Frames, s.Published, s.Suppressed, s.Dropped)))
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("p: Pause • r: Rescale • q: Quit"))
	return sb.String()
}

func (m MonitorModel) barWidth() int {
	return max(m.width-labelWidth-valueWidth, minBarWidth)
}

// renderBars draws one row per channel.
func (m MonitorModel) renderBars() string {
	var sb strings.Builder
	width := m.barWidth()
	for i, v := range m.latest.Features {
		n := int(float64(v) / m.ceiling * float64(width))
		n = min(max(n, 0), width)
		fmt.Fprintf(&sb, "c%02d  %s%s %7.2f\n", i,
			barStyle.Render(strings.Repeat("█", n)), strings.Repeat(" ", width-n), v)
	}
	return sb.String()
}

// renderHistory draws recent frames oldest first, one character per channel.
func (m MonitorModel) renderHistory() string {
	var sb strings.Builder
	for _, row := range m.history {
		sb.WriteString(spark(row, m.ceiling))
		sb.WriteString("\n")
	}
	return sb.String()
}

func spark(values []float32, ceiling float64) string {
	runes := make([]rune, len(values))
	top := len(sparkRunes) - 1
	for i, v := range values {
		idx := int(float64(v) / ceiling * float64(top))
		runes[i] = sparkRunes[min(max(idx, 0), top)]
	}
	return string(runes)
}

// RunMonitor shows the monitor until the user quits, ch is closed or ctx
// is done.
func RunMonitor(ctx context.Context, ch <-chan transport.FeatureFrame, stats func() audio.Stats, sampleRate int) error {
	p := tea.NewProgram(NewMonitorModel(ch, stats, sampleRate), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}
