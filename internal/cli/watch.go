package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vigilo-sh/vigilo/internal/ledger"
)

func newWatchCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the event ledger live in a scrolling terminal view",
		Long:  "Opens an alt-screen viewport that redraws whenever a new event is appended to the active ledger file, most recent event at the bottom. Press q to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(noColor)
			if err != nil {
				return err
			}
			m, err := newWatchModel(a, n)
			if err != nil {
				return err
			}
			prog := tea.NewProgram(m, tea.WithAltScreen())
			_, err = prog.Run()
			return err
		},
	}
	cmd.Flags().IntVar(&n, "last", 200, "number of most recent events to keep on screen")
	return cmd
}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	watchHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchRiskStyle  = map[string]lipgloss.Style{
		"exec":  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		"write": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"read":  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

// tickMsg fires a periodic redraw even if fsnotify misses an event
// (e.g. the ledger directory was not yet created at watch start).
type tickMsg time.Time

// ledgerChangedMsg is sent when fsnotify observes activity in the
// ledger directory.
type ledgerChangedMsg struct{}

type watchModel struct {
	app      *app
	last     int
	viewport viewport.Model
	watcher  *fsnotify.Watcher
	ready    bool
	err      error
	rowCount int
}

func newWatchModel(a *app, last int) (*watchModel, error) {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		_ = watcher.Add(a.ledgerDir)
	}
	return &watchModel{app: a, last: last, watcher: watcher}, nil
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.watchFile(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *watchModel) watchFile() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case _, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			return ledgerChangedMsg{}
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return ledgerChangedMsg{}
		}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.refresh()

	case ledgerChangedMsg:
		m.refresh()
		cmds = append(cmds, m.watchFile())

	case tickMsg:
		m.refresh()
		cmds = append(cmds, tick())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *watchModel) refresh() {
	if !m.ready {
		return
	}
	events, err := ledger.Tail(m.app.ledgerDir, m.last)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	events = m.app.decryptEvents(events)
	m.rowCount = len(events)

	atBottom := m.viewport.AtBottom()
	var b strings.Builder
	for _, e := range events {
		style, ok := watchRiskStyle[string(e.Risk)]
		risk := string(e.Risk)
		if ok && !m.app.noColor {
			risk = style.Render(risk)
		}
		fmt.Fprintf(&b, "%s  %-8s %-6s %-10s %s\n",
			e.Timestamp.Format("15:04:05"),
			shortID(e.SessionID),
			risk,
			e.Tool,
			e.Outcome.Status,
		)
	}
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *watchModel) View() string {
	if !m.ready {
		return "\n  loading...\n"
	}
	title := watchTitleStyle.Render("vigilo watch")
	line := strings.Repeat("─", max0(m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, watchHelpStyle.Render(line))

	status := fmt.Sprintf(" %d events │ q: quit │ g/G: top/bottom ", m.rowCount)
	if m.err != nil {
		status = " error: " + m.err.Error()
	}
	footer := watchHelpStyle.Render(status)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
