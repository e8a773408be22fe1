package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/photosphere/tree-diff-go/lib"
	"github.com/spf13/cobra"
)

func runBrowse(cmd *cobra.Command, args []string) error {
	left, right := args[0], args[1]
	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(ExitFatal)
	}
	logger, err := lib.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(ExitFatal)
	}
	defer logger.Close()
	defer logger.PrintLogPaths()

	engine, err := lib.New(left, right, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(ExitFatal)
	}
	if err := engine.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(ExitFatal)
	}

	m := newBrowseModel(engine, left, right)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		engine.Cancel()
		fmt.Fprintf(os.Stderr, "browse: %v\n", err)
		os.Exit(ExitFatal)
	}
	engine.Cancel()
	return nil
}

// --------------------------- TUI model ---------------------------

type browseModel struct {
	engine *lib.Engine
	left   string
	right  string

	width  int
	height int
	cursor int
	top    int

	rows   []lib.Node
	spin   spinner.Model
	status string
	notice string
}

type treeChangedMsg struct{}

type progressTickMsg time.Time

func newBrowseModel(engine *lib.Engine, left, right string) *browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &browseModel{
		engine: engine,
		left:   left,
		right:  right,
		spin:   sp,
		status: "scanning ...",
	}
}

// waitForChange delivers one message per tree-change pulse; Update re-arms
// it after every delivery.
func waitForChange(engine *lib.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Changes()
		return treeChangedMsg{}
	}
}

func progressTicker() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m *browseModel) Init() tea.Cmd {
	m.reload()
	return tea.Batch(m.spin.Tick, waitForChange(m.engine), progressTicker())
}

func (m *browseModel) visibleRows() int {
	v := m.height - 3
	if v < 1 {
		v = 10
	}
	return v
}

// reload pulls a fresh flattened snapshot and keeps cursor and scroll
// inside it.
func (m *browseModel) reload() {
	m.rows = m.engine.Flatten()
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()
	m.pushViewport()
}

func (m *browseModel) clampScroll() {
	vis := m.visibleRows()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+vis {
		m.top = m.cursor - vis + 1
	}
	if m.top < 0 {
		m.top = 0
	}
}

func (m *browseModel) pushViewport() {
	m.engine.SetViewport(m.top, m.visibleRows())
}

func (m *browseModel) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()
	m.pushViewport()
}

func (m *browseModel) selected() (lib.Node, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return lib.Node{}, false
	}
	return m.rows[m.cursor], true
}

// toggleSelected expands or collapses the directory under the cursor. The
// expand path lists the directory synchronously, so the children are in
// the next snapshot already. On a differing file it surfaces the concrete
// pair instead, the handoff point for an external diff viewer.
func (m *browseModel) toggleSelected() {
	n, ok := m.selected()
	if !ok {
		return
	}
	if !n.IsDir {
		m.openSelectedDiff(n)
		return
	}
	var err error
	if n.Expanded {
		_, err = m.engine.Collapse(n.Rel)
	} else {
		_, err = m.engine.Expand(n.Rel)
	}
	if err != nil {
		m.notice = err.Error()
	}
	m.reload()
}

func (m *browseModel) openSelectedDiff(n lib.Node) {
	if n.Diff != lib.DiffContentDifferent {
		return
	}
	left, right, err := m.engine.DiffPair(n.Rel)
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = fmt.Sprintf("diff pair: %s | %s", left, right)
}

func (m *browseModel) expandSelected() {
	n, ok := m.selected()
	if !ok || !n.IsDir || n.Expanded {
		return
	}
	if _, err := m.engine.Expand(n.Rel); err != nil {
		m.notice = err.Error()
	}
	m.reload()
}

// collapseSelected folds the directory under the cursor, or jumps to the
// parent row when there is nothing to fold.
func (m *browseModel) collapseSelected() {
	n, ok := m.selected()
	if !ok {
		return
	}
	if n.IsDir && n.Expanded {
		m.engine.Collapse(n.Rel)
		m.reload()
		return
	}
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].ID == n.Parent {
			m.cursor = i
			break
		}
	}
	m.clampScroll()
	m.pushViewport()
}

func (m *browseModel) refreshStatus() {
	progress := m.engine.Progress()
	queuedScans, queuedCompares := m.engine.PendingTasks()
	queued := queuedScans + queuedCompares
	summary := m.engine.Summarize()
	if queued > 0 || summary.Pending > 0 {
		m.status = fmt.Sprintf("%s %d dirs scanned, %d files compared (%s), %d queued",
			m.spin.View(), progress.DirsScanned, progress.FilesCompared,
			humanize.Bytes(uint64(progress.BytesCompared)), queued)
	} else {
		m.status = fmt.Sprintf("done: %d differences, %d unreadable (%d dirs, %d files)",
			summary.Differences(), summary.Inaccessible, summary.Dirs, summary.Files)
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampScroll()
		m.pushViewport()
		return m, nil

	case treeChangedMsg:
		m.engine.Tree().ClearDirty()
		m.reload()
		return m, waitForChange(m.engine)

	case progressTickMsg:
		m.refreshStatus()
		return m, progressTicker()

	case tea.KeyMsg:
		// Any keypress dismisses a sticky notice.
		m.notice = ""
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "pgup":
			m.moveCursor(-m.visibleRows())
		case "pgdown":
			m.moveCursor(m.visibleRows())
		case "home":
			m.moveCursor(-len(m.rows))
		case "end":
			m.moveCursor(len(m.rows))
		case "enter":
			m.toggleSelected()
		case "right", "l":
			m.expandSelected()
		case "left", "h":
			m.collapseSelected()
		case "c":
			m.engine.Cancel()
			m.notice = "background work canceled; tree keeps what was found"
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

// --------------------------- Rendering ---------------------------

var (
	styleHeader     = lipgloss.NewStyle().Bold(true)
	styleFooter     = lipgloss.NewStyle().Faint(true)
	styleCursor     = lipgloss.NewStyle().Background(lipgloss.Color("57"))
	stylePlain      = lipgloss.NewStyle()
	stylePending    = lipgloss.NewStyle().Faint(true)
	styleOnlyLeft   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleOnlyRight  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleDifferent  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleContains   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleUnreadable = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// diffMarker picks the one-character classification marker and the row
// style. Provisional classifications render faint until they settle.
func diffMarker(n lib.Node) (string, lipgloss.Style) {
	if n.Inaccessible {
		return "!", styleUnreadable
	}
	switch n.Diff {
	case lib.DiffIdentical:
		if n.Provisional {
			return "=", stylePending
		}
		return "=", stylePlain
	case lib.DiffOnlyLeft:
		return "<", styleOnlyLeft
	case lib.DiffOnlyRight:
		return ">", styleOnlyRight
	case lib.DiffContentDifferent:
		return "*", styleDifferent
	case lib.DiffContainsDifference:
		return "~", styleContains
	}
	return "·", stylePending
}

func (m *browseModel) renderRow(n lib.Node, selected bool) string {
	marker, style := diffMarker(n)
	indent := strings.Repeat("  ", n.Depth)
	expander := "  "
	if n.IsDir {
		if n.Expanded {
			expander = "▾ "
		} else {
			expander = "▸ "
		}
	}
	name := n.Name
	if n.IsDir {
		name += "/"
	}
	detail := ""
	if !n.IsDir {
		detail = "  " + humanize.Bytes(uint64(n.Size()))
	} else if n.ScanInProgress {
		detail = "  " + m.spin.View()
	}
	line := fmt.Sprintf("%s %s%s%s%s", marker, indent, expander, name, detail)
	if selected {
		return styleCursor.Render(line)
	}
	return style.Render(line)
}

func (m *browseModel) View() string {
	header := styleHeader.Render(fmt.Sprintf("treediff: %s vs %s", m.left, m.right))
	vis := m.visibleRows()
	end := m.top + vis
	if end > len(m.rows) {
		end = len(m.rows)
	}
	lines := make([]string, 0, vis)
	for i := m.top; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.cursor))
	}
	for len(lines) < vis {
		lines = append(lines, "")
	}
	footer := styleFooter.Render("↑/↓ move  enter open/close  ←/→ fold/unfold  pgup/pgdn scroll  c cancel  q quit")
	statusLine := m.status
	if m.notice != "" {
		statusLine = m.notice
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(lines, "\n"),
		statusLine,
		footer,
	)
}
