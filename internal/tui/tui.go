// Package tui implements the interactive watch view: a live terminal
// dashboard over the sync engine's snapshot.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"homedash/hub"
	"homedash/internal/core"
)

// Source provides snapshots for the watch view. Implemented by both the
// daemon client and a locally ticking engine.
type Source interface {
	Snapshot() (core.Snapshot, error)
	Refresh() error
}

// pollInterval is how often the view re-reads the snapshot.
const pollInterval = 2 * time.Second

type snapshotMsg struct {
	snap core.Snapshot
}

type errMsg struct {
	err error
}

type pollMsg struct{}

// Model is the bubbletea model for the watch view.
type Model struct {
	source  Source
	spinner spinner.Model
	snap    core.Snapshot
	loaded  bool
	err     error
	width   int

	titleStyle   lipgloss.Style
	tileStyle    lipgloss.Style
	labelStyle   lipgloss.Style
	offlineStyle lipgloss.Style
	statusStyle  lipgloss.Style
	dimStyle     lipgloss.Style
	helpStyle    lipgloss.Style
}

// New creates a watch view over the given snapshot source.
func New(source Source) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		source:  source,
		spinner: sp,
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		tileStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		labelStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")),
		offlineStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		statusStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchSnapshot())
}

func (m *Model) fetchSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.source.Snapshot()
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{snap}
	}
}

func schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			_ = m.source.Refresh()
			return m, m.fetchSnapshot()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.loaded = true
		m.err = nil
		return m, schedulePoll()

	case errMsg:
		m.err = msg.err
		return m, schedulePoll()

	case pollMsg:
		return m, m.fetchSnapshot()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) View() string {
	if !m.loaded {
		if m.err != nil {
			return m.offlineStyle.Render("cannot read dashboard state: "+m.err.Error()) + "\n" +
				m.helpStyle.Render("q quit  r retry") + "\n"
		}
		return m.spinner.View() + " loading dashboard...\n"
	}

	var b strings.Builder
	snap := m.snap

	b.WriteString(m.titleStyle.Render("homedash"))
	if !snap.HubOnline {
		b.WriteString("  " + m.offlineStyle.Render("HUB OFFLINE"))
	}
	b.WriteString("\n\n")

	tiles := []string{m.weatherTile(snap), m.tasksTile(snap), m.calendarTile(snap)}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.forecastTile(snap), m.mailboxTile(snap)))
	b.WriteString("\n")

	b.WriteString(m.statusStyle.Render(snap.StatusLine))
	b.WriteString("\n")
	b.WriteString(m.helpStyle.Render("q quit  r refresh"))
	b.WriteString("\n")

	return b.String()
}

func (m *Model) weatherTile(snap core.Snapshot) string {
	var lines []string
	lines = append(lines, m.labelStyle.Render("Weather"))
	if snap.Weather == nil {
		lines = append(lines, m.dimStyle.Render("no data"))
	} else {
		w := snap.Weather
		condition := hub.FormatCondition(w.State)
		if w.Temperature != nil {
			lines = append(lines, fmt.Sprintf("%.0f%s  %s", *w.Temperature, w.TemperatureUnit, condition))
		} else {
			lines = append(lines, condition)
		}
		if w.Humidity != nil {
			lines = append(lines, m.dimStyle.Render(fmt.Sprintf("humidity %.0f%%", *w.Humidity)))
		}
	}
	if snap.Sun != nil {
		lines = append(lines, m.dimStyle.Render("sun: "+snap.Sun.State))
	}
	return m.tileStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) forecastTile(snap core.Snapshot) string {
	var lines []string
	lines = append(lines, m.labelStyle.Render("Forecast"))
	if len(snap.Forecast) == 0 {
		lines = append(lines, m.dimStyle.Render("no data"))
	}
	for _, day := range snap.Forecast {
		lines = append(lines, fmt.Sprintf("%s  %s/%s  %s",
			shortDate(day.Date), formatTemp(day.TempHigh), formatTemp(day.TempLow),
			hub.FormatCondition(day.Condition)))
	}
	return m.tileStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) tasksTile(snap core.Snapshot) string {
	var lines []string
	lines = append(lines, m.labelStyle.Render(fmt.Sprintf("Tasks (%d)", len(snap.Tasks))))
	if len(snap.Tasks) == 0 {
		lines = append(lines, m.dimStyle.Render("all done"))
	}
	for i, task := range snap.Tasks {
		if i >= 8 {
			lines = append(lines, m.dimStyle.Render(fmt.Sprintf("+%d more", len(snap.Tasks)-i)))
			break
		}
		line := "• " + task.Summary
		if task.Due != "" {
			line += m.dimStyle.Render(" (" + shortDate(task.Due) + ")")
		}
		lines = append(lines, line)
	}
	return m.tileStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) calendarTile(snap core.Snapshot) string {
	var lines []string
	lines = append(lines, m.labelStyle.Render("Today"))
	if len(snap.CalendarToday) == 0 {
		lines = append(lines, m.dimStyle.Render("nothing scheduled"))
	}
	for _, event := range snap.CalendarToday {
		lines = append(lines, eventTime(event.Start)+" "+event.Summary)
	}
	if len(snap.CalendarUpcoming) > 0 {
		lines = append(lines, "", m.labelStyle.Render("Upcoming"))
		for _, event := range snap.CalendarUpcoming {
			lines = append(lines, shortDate(event.Start)+" "+event.Summary)
		}
	}
	return m.tileStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) mailboxTile(snap core.Snapshot) string {
	var lines []string
	lines = append(lines, m.labelStyle.Render("Mailbox"))
	meta := snap.MailboxMeta
	switch {
	case meta.OpenedToday && !meta.Cleared:
		line := "mail arrived"
		if meta.OpenedTime != "" {
			line += " at " + meta.OpenedTime
		}
		lines = append(lines, line)
	case meta.Cleared:
		lines = append(lines, m.dimStyle.Render("checked"))
	default:
		lines = append(lines, m.dimStyle.Render("no mail yet"))
	}
	if snap.QueuedActions > 0 {
		lines = append(lines, m.dimStyle.Render(fmt.Sprintf("%d actions queued", snap.QueuedActions)))
	}
	return m.tileStyle.Render(strings.Join(lines, "\n"))
}

// formatTemp renders a possibly-missing temperature.
func formatTemp(t *float64) string {
	if t == nil {
		return "--"
	}
	return fmt.Sprintf("%.0f", *t)
}

// shortDate renders "2026-08-29..." as "Aug 29", passing through anything
// that does not parse.
func shortDate(s string) string {
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("Jan 2")
		}
	}
	return s
}

// eventTime renders an event start as a clock time, or "all day" for
// date-only starts.
func eventTime(start string) string {
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		return t.Local().Format("3:04 PM")
	}
	if len(start) > 10 {
		if t, err := time.Parse("2006-01-02T15:04:05", start); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return "all day"
}

// Run starts the watch view and blocks until the user quits.
func Run(source Source) error {
	p := tea.NewProgram(New(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
