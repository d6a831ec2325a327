// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for warnings and errors
}

// TUI model
type model struct {
	connInfo      string
	timeout       time.Duration
	sensors       *vedirect.SensorSet
	stats         *vedirect.Statistics
	table         table.Model
	filter        textinput.Model
	filtering     bool
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	lastRecord    time.Time
	width         int
	height        int
	quitting      bool
	err           error
}

// Messages
type tickMsg time.Time
type recordMsg struct {
	record vedirect.Record
}
type logMsg struct {
	line string
}
type sessionDoneMsg struct {
	err error
}

// formatDuration formats a duration to a human-friendly string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// formatSensorValue renders a numeric state for the table. Durations in
// minutes are spelled out; a time to go of -1 means infinite.
func formatSensorValue(id vedirect.SensorID, v float64) string {
	switch id {
	case vedirect.TimeToGo:
		if v < 0 {
			return "infinite"
		}
		return formatDuration(time.Duration(v) * time.Minute)
	case vedirect.LastFullCharge:
		return formatDuration(time.Duration(v) * time.Minute)
	}
	return vedirect.FormatValue(v, "")
}

func initialModel(connInfo string, timeout time.Duration, sensors *vedirect.SensorSet, stats *vedirect.Statistics) model {
	columns := []table.Column{
		{Title: "Sensor", Width: 30},
		{Title: "Value", Width: 30},
		{Title: "Unit", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "sensor name"
	ti.Prompt = "Filter: "
	ti.CharLimit = 32

	m := model{
		connInfo:      connInfo,
		timeout:       timeout,
		sensors:       sensors,
		stats:         stats,
		table:         t,
		filter:        ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshRows()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
				m.filter.Blur()
				m.table.Focus()
				m.refreshRows()
				return m, nil
			case "esc":
				m.filtering = false
				m.filter.SetValue("")
				m.filter.Blur()
				m.table.Focus()
				m.refreshRows()
				return m, nil
			}
			m.filter, cmd = m.filter.Update(msg)
			m.refreshRows()
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.table.Blur()
			return m, m.filter.Focus()
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		tableHeight := m.height - 22
		if tableHeight < 5 {
			tableHeight = 5
		}
		m.table.SetHeight(tableHeight)

	case tickMsg:
		m.refreshRows()
		return m, tickCmd()

	case recordMsg:
		m.lastRecord = msg.record.Timestamp
		if !m.synchronized {
			m.synchronized = true
			m.addLogEntry(fmt.Sprintf("Synchronized on label %s", msg.record.Label), false)
		}
		return m, nil

	case logMsg:
		isError := strings.Contains(msg.line, " WRN ") || strings.Contains(msg.line, " ERR ")
		m.addLogEntry(msg.line, isError)
		return m, nil

	case sessionDoneMsg:
		m.err = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection ended: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   strings.TrimRight(message, "\n"),
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// refreshRows rebuilds the sensor table from the current states
func (m *model) refreshRows() {
	filter := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	rows := make([]table.Row, 0, len(m.sensors.IDs()))
	for _, id := range m.sensors.IDs() {
		info, _ := m.sensors.Info(id)
		if filter != "" && !strings.Contains(strings.ToLower(info.Name), filter) &&
			!strings.Contains(string(id), filter) {
			continue
		}

		value, unit := "-", info.Unit
		if sensor, ok := m.sensors.Sensor(id); ok {
			if v, has := sensor.State(); has {
				value = formatSensorValue(id, v)
				if id == vedirect.TimeToGo || id == vedirect.LastFullCharge {
					unit = ""
				}
			}
		} else if sensor, ok := m.sensors.TextSensor(id); ok {
			if v, has := sensor.State(); has {
				value = v
			}
		}
		rows = append(rows, table.Row{info.Name, value, unit})
	}
	m.table.SetRows(rows)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SOLSTAT - VE.DIRECT MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Timeout: %s | '/' filter, 'r' reset stats, 'q' quit", m.connInfo, m.timeout)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for first record..."))
	case time.Since(m.lastRecord) > 3*time.Second:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ No data for %s", formatDuration(time.Since(m.lastRecord)))))
	default:
		s.WriteString(statsValueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	var interpretedPercent float64
	if c.Records > 0 {
		interpretedPercent = float64(c.Interpreted) * 100.0 / float64(c.Records)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Blocks:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Blocks)),
		statsLabelStyle.Render("Records:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Records)),
		statsLabelStyle.Render("Interpreted:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.Interpreted, interpretedPercent)),
	))

	if c.Errors() > 0 || c.UnknownLabels > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", c.Timeouts)),
			statsLabelStyle.Render("Overflows:"), errorStyle.Render(fmt.Sprintf("%d", c.Overflows)),
			statsLabelStyle.Render("Parse:"), warningStyle.Render(fmt.Sprintf("%d", c.ParseFailures)),
			statsLabelStyle.Render("Unknown:"), warningStyle.Render(fmt.Sprintf("%d", c.UnknownLabels)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Record Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f recs/s", c.RecordRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if c.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
		}(),
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatDuration(time.Since(c.StartTime))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Sensor table
	s.WriteString(statsLabelStyle.Render("Sensors:"))
	if m.filtering || m.filter.Value() != "" {
		s.WriteString("  ")
		s.WriteString(m.filter.View())
	}
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.table.Height() - 18
	if logHeight < 3 {
		logHeight = 3
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// programWriter forwards log lines to the TUI event log. Lines written
// before the program is attached are held back and flushed on attach.
type programWriter struct {
	mu      sync.Mutex
	program *tea.Program
	pending []string
}

func (w *programWriter) Write(p []byte) (int, error) {
	line := string(p)

	w.mu.Lock()
	program := w.program
	if program == nil {
		w.pending = append(w.pending, line)
	}
	w.mu.Unlock()

	if program != nil {
		program.Send(logMsg{line: line})
	}
	return len(p), nil
}

func (w *programWriter) attach(p *tea.Program) {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.program = p
	w.mu.Unlock()

	go func() {
		for _, line := range pending {
			p.Send(logMsg{line: line})
		}
	}()
}
