package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cadence/clipboard"
	"cadence/event"
	"cadence/hotkey"
	"cadence/log"
	"cadence/pipeline"
	"cadence/timeline"
)

// TUI message types
type EventMsg struct{ Event event.Event }
type snapshotMsg pipeline.Snapshot
type tickMsg time.Time

const recentEvents = 8

type tuiConfig struct {
	Engine  *pipeline.Engine
	Zoom    timeline.Zoom
	Device  string
	BT      bool
	Actions chan<- hotkey.Action
	Quit    func()
}

type tuiModel struct {
	cfg           tuiConfig
	snap          pipeline.Snapshot
	frame         int
	level         float64 // smoothed RMS
	width, height int
	events        []event.Event
	zoom          timeline.Zoom
	showTimeline  bool
	notice        string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
	tuiDone    chan struct{}
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pauseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	speechStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

var pulseColors = [...]string{"", "231", "224", "217", "210", "204", "168", "132", "96", "60", "236", "236"}

var pulseStyles [len(pulseColors)]lipgloss.Style

func init() {
	for i, c := range pulseColors {
		if c != "" {
			pulseStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
}

func newTUIModel(cfg tuiConfig) tuiModel {
	return tuiModel{cfg: cfg, zoom: cfg.Zoom}
}

// startTUI runs the program in the background. When the user quits from the
// terminal, cfg.Quit is called so the main loop can wind the session down.
func startTUI(cfg tuiConfig) {
	tuiMu.Lock()
	tuiProgram = tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	tuiDone = make(chan struct{})
	p, done := tuiProgram, tuiDone
	tuiMu.Unlock()

	go func() {
		defer close(done)
		if _, err := p.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		if cfg.Quit != nil {
			cfg.Quit()
		}
	}()
}

// stopTUI quits the program and waits until the terminal is restored.
func stopTUI() {
	tuiMu.Lock()
	p, done := tuiProgram, tuiDone
	tuiProgram = nil
	tuiMu.Unlock()
	if p == nil {
		return
	}
	p.Quit()
	<-done
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (m tuiModel) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) poll() tea.Msg {
	if m.cfg.Engine == nil {
		return nil
	}
	return snapshotMsg(m.cfg.Engine.Snapshot())
}

func (m tuiModel) Init() tea.Cmd {
	return m.tick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.key(msg.String())

	case tickMsg:
		m.frame++
		return m, tea.Batch(m.poll, m.tick())

	case snapshotMsg:
		m.snap = pipeline.Snapshot(msg)
		m.level = m.level*0.6 + m.snap.Features.RMS*0.4

	case EventMsg:
		m.events = append(m.events, msg.Event)
		if len(m.events) > recentEvents {
			m.events = m.events[len(m.events)-recentEvents:]
		}
	}
	return m, nil
}

func (m tuiModel) key(k string) (tea.Model, tea.Cmd) {
	switch k {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ":
		m.send(hotkey.ActionToggle)
	case "e":
		m.send(hotkey.ActionEnd)
	case "z":
		m.zoom = nextZoom(m.zoom)
	case "t":
		m.showTimeline = !m.showTimeline
	case "c":
		if m.cfg.Engine == nil {
			break
		}
		err := clipboard.CopyTimeline(m.cfg.Engine.SessionID(), m.cfg.Engine.Timeline(m.zoom))
		if err != nil {
			log.Warnf("clipboard copy: %v", err)
			m.notice = "copy failed"
		} else {
			m.notice = "timeline copied"
		}
	}
	return m, nil
}

func (m tuiModel) send(a hotkey.Action) {
	if m.cfg.Actions == nil {
		return
	}
	select {
	case m.cfg.Actions <- a:
	default:
	}
}

func nextZoom(z timeline.Zoom) timeline.Zoom {
	switch z {
	case timeline.ZoomFull:
		return timeline.Zoom1m
	case timeline.Zoom1m:
		return timeline.Zoom5m
	}
	return timeline.ZoomFull
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = 36
	active := m.snap.Status == event.StatusActive
	left := renderPulse(m.frame, m.level, m.snap.Features.Rhythm.BPM, active)
	for _, line := range m.statusLines() {
		left += line + "\n"
	}

	rightWidth := max(20, m.width-leftWidth-1)
	var right strings.Builder
	if m.showTimeline && m.cfg.Engine != nil {
		right.WriteString(labelStyle.Render(fmt.Sprintf("Timeline (%s)", m.zoom)) + "\n\n")
		right.WriteString(dimStyle.Render(timeline.Summary(m.cfg.Engine.Timeline(m.zoom))))
	} else {
		right.WriteString(m.eventList())
	}

	leftPanel := lipgloss.NewStyle().Width(leftWidth - 1).Height(m.height).Render(left)
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) statusLines() []string {
	s := m.snap
	var lines []string

	switch s.Status {
	case event.StatusActive:
		lines = append(lines, activeStyle.Render("● LIVE "+mmss(s.Elapsed)))
	case event.StatusPaused:
		lines = append(lines, pauseStyle.Render("❚❚ PAUSED "+mmss(s.Elapsed)))
	case event.StatusEnded:
		lines = append(lines, dimStyle.Render("■ ENDED "+mmss(s.Elapsed)))
	default:
		lines = append(lines, dimStyle.Render("○ READY"))
	}

	lines = append(lines, "")
	lines = append(lines, labelStyle.Render("level  ")+barStyle.Render(bar(s.Features.RMS/0.25, 20)))
	rhythm := dimStyle.Render("none")
	if s.Features.Rhythm.Active {
		rhythm = okStyle.Render(fmt.Sprintf("%.0f bpm", s.Features.Rhythm.BPM))
	}
	lines = append(lines, labelStyle.Render("rhythm ")+barStyle.Render(bar(s.Features.Rhythm.Strength, 20))+" "+rhythm)
	if s.Features.SilenceActive {
		lines = append(lines, labelStyle.Render("silence ")+dimStyle.Render(fmt.Sprintf("%.0fs", s.Features.SilenceSeconds)))
	}
	lines = append(lines, labelStyle.Render("phase  ")+string(s.Phase))

	lines = append(lines, "")
	adapter := s.Adapter
	if adapter == "" {
		adapter = "offline"
	}
	if s.InFlight {
		adapter += " …"
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("[%s | %s]", s.Profile, adapter)))
	if s.AdapterErr != "" {
		lines = append(lines, warnStyle.Render("⚠ "+truncate(s.AdapterErr, 32)))
	}
	if m.cfg.Device != "" {
		lines = append(lines, dimStyle.Render(truncate(m.cfg.Device, 34)))
	}
	if m.cfg.BT {
		lines = append(lines, warnStyle.Render("⚠ Bluetooth mic, levels may be low"))
	}
	if m.notice != "" {
		lines = append(lines, okStyle.Render(m.notice))
	}

	lines = append(lines, "")
	lines = append(lines, faintStyle.Bold(true).Render(hotkey.Label)+faintStyle.Render(" tap pause, hold end"))
	lines = append(lines, faintStyle.Render("space pause  e end  t timeline"))
	lines = append(lines, faintStyle.Render("z zoom  c copy  q quit"))
	lines = append(lines, faintStyle.Render("cadence "+version))
	return lines
}

func (m tuiModel) eventList() string {
	var sb strings.Builder
	sb.WriteString(labelStyle.Render(fmt.Sprintf("Events (%d)", m.snap.Events)) + "\n\n")
	if len(m.events) == 0 {
		sb.WriteString(dimStyle.Render("No events yet"))
		return sb.String()
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		line := fmt.Sprintf("%6s  %-26s %-9s %.2f", mmss(time.Duration(ev.T*float64(time.Second))), ev.Type, ev.Source, ev.Confidence)
		if ev.Source == event.SourceSpeech {
			line = speechStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// renderPulse draws concentric rings that swell with the level and breathe
// at the detected tempo.
func renderPulse(frame int, level, bpm float64, active bool) string {
	const charsW = 34
	const charsH = 11
	const pixH = charsH * 2

	rate := 0.08
	if bpm > 0 {
		rate = 2 * math.Pi * bpm / 60 / 10 // ten frames per second
	}
	breathe := math.Sin(float64(frame)*rate)*0.03 - 0.05
	if active {
		breathe += level * 8
	}

	radii := []float64{0.6, 1.4, 2.2, 3.0, 3.8, 4.6, 5.4, 6.2, 7.0, 8.0}
	pixels := make([][]int, pixH)
	cx, cy := float64(charsW)/2, float64(pixH)/2
	for y := range pixels {
		pixels[y] = make([]int, charsW)
		for x := range pixels[y] {
			dist := math.Hypot(float64(x)-cx, (float64(y)-cy)*1.1)
			for i, r := range radii {
				react := 0.3 * (1 - math.Abs(float64(i)-4)/6)
				if dist < min(9.5, r+breathe*react*20) {
					pixels[y][x] = i + 1
					break
				}
			}
		}
	}

	var sb strings.Builder
	for row := range charsH {
		for x := range charsW {
			top, bot := pixels[row*2][x], pixels[row*2+1][x]
			switch {
			case top == 0 && bot == 0:
				sb.WriteString(" ")
			case top == bot:
				sb.WriteString(pulseStyles[top].Render("█"))
			case top == 0:
				sb.WriteString(pulseStyles[bot].Render("▄"))
			default:
				sb.WriteString(pulseStyles[top].Render("▀"))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func bar(v float64, width int) string {
	n := int(math.Round(max(0, min(1, v)) * float64(width)))
	return strings.Repeat("█", n) + strings.Repeat("·", width-n)
}

func mmss(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
