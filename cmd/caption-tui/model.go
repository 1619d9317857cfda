package main

import (
	"caption-studio/scene"
	"caption-studio/search"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

const (
	paneSearch = iota
	paneEditor
)

const requestTimeout = 30 * time.Second

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 2)
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type (
	searchDoneMsg struct {
		seq   uint64
		query string
		page  *search.Page
		err   error
	}

	backgroundLoadedMsg struct {
		url string
		err error
	}
)

type model struct {
	browser  *search.Browser
	searcher search.Searcher
	editor   *scene.Editor

	exportPath string

	pane   int
	input  string
	cursor int // -1 while the query input has focus

	status    string
	statusErr bool
	quitting  bool
}

func newModel(searcher search.Searcher, editor *scene.Editor, exportPath string) model {
	return model{
		browser:    search.NewBrowser(searcher),
		searcher:   searcher,
		editor:     editor,
		exportPath: exportPath,
		cursor:     -1,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m *model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *model) setError(msg string) {
	m.status = msg
	m.statusErr = true
}

func searchCmd(searcher search.Searcher, seq uint64, query string, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		p, err := searcher.Search(ctx, query, page)
		return searchDoneMsg{seq: seq, query: query, page: p, err: err}
	}
}

func loadBackgroundCmd(editor *scene.Editor, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return backgroundLoadedMsg{url: url, err: editor.LoadBackground(ctx, url)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case searchDoneMsg:
		return m.handleSearchDone(msg)
	case backgroundLoadedMsg:
		return m.handleBackgroundLoaded(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.pane = (m.pane + 1) % 2
			return m, nil
		}
		if m.pane == paneEditor {
			return m.updateEditor(msg)
		}
		return m.updateSearch(msg)
	}
	return m, nil
}

func (m model) handleSearchDone(msg searchDoneMsg) (tea.Model, tea.Cmd) {
	state, err := m.browser.Complete(msg.seq, msg.query, msg.page, msg.err)
	switch {
	case errors.Is(err, search.ErrSuperseded):
		return m, nil
	case err != nil:
		m.setError(state.Error)
	default:
		m.setStatus(fmt.Sprintf("%q: page %d of %d", state.Query, state.Page, state.TotalPages))
	}
	if m.cursor >= len(state.Results) {
		m.cursor = len(state.Results) - 1
	}
	return m, nil
}

func (m model) handleBackgroundLoaded(msg backgroundLoadedMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, scene.ErrSuperseded):
		return m, nil
	case msg.err != nil:
		logrus.WithError(msg.err).WithField("url", msg.url).Error("Failed to load background")
		m.setError("Failed to load image: " + msg.err.Error())
	default:
		m.setStatus("Background loaded")
		m.pane = paneEditor
	}
	return m, nil
}

func (m model) startSearch(query string, page int) (tea.Model, tea.Cmd) {
	seq := m.browser.Begin()
	m.setStatus("Loading...")
	return m, searchCmd(m.searcher, seq, query, page)
}

// turnPage pages through the last submitted query. Pages outside the known
// range never reach the searcher.
func (m model) turnPage(state search.State, page int) (tea.Model, tea.Cmd) {
	if state.Query == "" || page < 1 || page > state.TotalPages {
		return m, nil
	}
	return m.startSearch(state.Query, page)
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.browser.State()

	switch msg.String() {
	case "enter":
		if m.cursor >= 0 {
			url, err := m.browser.Select(m.cursor)
			if err != nil {
				m.setError(err.Error())
				return m, nil
			}
			m.setStatus("Loading image...")
			return m, loadBackgroundCmd(m.editor, url)
		}
		query := strings.TrimSpace(m.input)
		if query == "" {
			return m, nil
		}
		return m.startSearch(query, 1)
	case "left":
		return m.turnPage(state, state.Page-1)
	case "right":
		return m.turnPage(state, state.Page+1)
	case "up":
		if m.cursor >= 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < len(state.Results)-1 {
			m.cursor++
		}
		return m, nil
	case "esc":
		m.cursor = -1
		return m, nil
	case "backspace":
		if m.cursor < 0 && len(m.input) > 0 {
			r := []rune(m.input)
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.cursor = -1
		m.input += string(msg.Runes)
		if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
			m.input += " "
		}
	}
	return m, nil
}

func (m model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var kind scene.Kind
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "r":
		kind = scene.KindRect
	case "c":
		kind = scene.KindCircle
	case "t":
		kind = scene.KindTriangle
	case "h":
		kind = scene.KindPolygon
	case "x":
		if _, err := m.editor.AddText(""); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		m.setStatus("Added text")
		return m, nil
	case "s":
		data, err := m.editor.Export()
		if err != nil {
			m.setError("Export failed: " + err.Error())
			return m, nil
		}
		if err := os.WriteFile(m.exportPath, data, 0o644); err != nil {
			m.setError("Export failed: " + err.Error())
			return m, nil
		}
		logrus.WithField("path", m.exportPath).Info("Scene exported")
		m.setStatus("Saved " + m.exportPath)
		return m, nil
	case "l":
		layers := m.editor.DescribeLayers()
		for i, l := range layers {
			logrus.WithFields(layerFields(i, l)).Info("Layer")
		}
		m.setStatus(fmt.Sprintf("Logged %d layers", len(layers)))
		return m, nil
	default:
		return m, nil
	}

	if _, err := m.editor.AddShape(kind); err != nil {
		m.setError(err.Error())
		return m, nil
	}
	m.setStatus("Added " + string(kind))
	return m, nil
}

func layerFields(i int, l scene.LayerDescriptor) logrus.Fields {
	return logrus.Fields{
		"index":  i,
		"type":   l.Type,
		"left":   l.Left,
		"top":    l.Top,
		"width":  l.Width,
		"height": l.Height,
		"fill":   l.Fill,
		"text":   l.Text,
		"scaleX": l.ScaleX,
		"scaleY": l.ScaleY,
		"angle":  l.Angle,
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	state := m.browser.State()

	var results strings.Builder
	results.WriteString(m.paneTitle(paneSearch, "Search") + "\n")
	prompt := "> " + m.input
	if m.cursor < 0 {
		prompt += "_"
	}
	results.WriteString(prompt + "\n\n")
	for i, p := range state.Results {
		line := p.AltDescription
		if line == "" {
			line = p.ID
		}
		if i == m.cursor {
			results.WriteString(activeStyle.Render("> "+line) + "\n")
		} else {
			results.WriteString("  " + line + "\n")
		}
	}
	if state.Query != "" {
		results.WriteString(dimStyle.Render(fmt.Sprintf("\npage %d of %d  ←/→", state.Page, state.TotalPages)))
	}

	var canvas strings.Builder
	canvas.WriteString(m.paneTitle(paneEditor, "Canvas") + "\n")
	if src, ok := m.editor.BackgroundSource(); ok {
		canvas.WriteString(dimStyle.Render(src) + "\n")
	}
	canvas.WriteString(fmt.Sprintf("%d layers\n\n", m.editor.Len()))
	canvas.WriteString(dimStyle.Render("r rect  c circle  t triangle  h hexagon\nx text  s save  l log  q quit"))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Width(48).Render(results.String()),
		paneStyle.Width(36).Render(canvas.String()),
	)
	return body + "\n" + statusBarStyle.Render(m.statusLine(state))
}

func (m model) paneTitle(pane int, title string) string {
	if m.pane == pane {
		return activeStyle.Render(title)
	}
	return titleStyle.Render(title)
}

func (m model) statusLine(state search.State) string {
	switch {
	case state.Loading:
		return "Loading..."
	case state.Error != "":
		return errorStyle.Render(state.Error)
	case m.statusErr:
		return errorStyle.Render(m.status)
	default:
		return m.status
	}
}
