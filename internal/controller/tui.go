package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// TUI implements UI using Bubble Tea for a scrollable view.
type TUI struct {
	output io.Writer
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// DisplayResult implements UI.
func (t *TUI) DisplayResult(ctx context.Context, result m.Result) error {
	title := fmt.Sprintf("patchwatch · %d findings · %d cycles", result.Snapshot.TotalFindings, len(result.Snapshot.Cycles))
	return t.show(ctx, title, joinSections(resultSections(result, true)))
}

// DisplayGraph implements UI.
func (t *TUI) DisplayGraph(ctx context.Context, result m.Result) error {
	title := fmt.Sprintf("patchwatch · import graph · %d edges", len(result.Edges))
	return t.show(ctx, title, joinSections(graphSections(result)))
}

// DisplayTrend implements UI.
func (t *TUI) DisplayTrend(ctx context.Context, report m.TrendReport, warnings []m.Warning) error {
	title := fmt.Sprintf("patchwatch · trend · %d snapshots", len(report.Series))
	return t.show(ctx, title, joinSections(append(trendSections(report), renderWarnings(warnings))))
}

func (t *TUI) show(ctx context.Context, title, content string) error {
	program := tea.NewProgram(newResultModel(title, content),
		tea.WithOutput(t.output), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}

	return nil
}

// resultModel is a read-only pager over rendered text.
type resultModel struct {
	title    string
	content  string
	viewport viewport.Model
	ready    bool
}

func newResultModel(title, content string) resultModel {
	return resultModel{title: title, content: content}
}

func (rm resultModel) Init() tea.Cmd {
	return nil
}

func (rm resultModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return rm, tea.Quit
		}
	case tea.WindowSizeMsg:
		height := max(msg.Height-rm.chromeHeight(), 1)

		if !rm.ready {
			rm.viewport = viewport.New(msg.Width, height)
			rm.viewport.SetContent(rm.content)
			rm.ready = true
		} else {
			rm.viewport.Width = msg.Width
			rm.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	rm.viewport, cmd = rm.viewport.Update(msg)

	return rm, cmd
}

func (rm resultModel) chromeHeight() int {
	return lipgloss.Height(rm.header()) + lipgloss.Height(rm.footer())
}

func (rm resultModel) header() string {
	return titleStyle.Render(rm.title)
}

func (rm resultModel) footer() string {
	percent := 100.0
	if rm.ready {
		percent = rm.viewport.ScrollPercent() * 100
	}

	return footerStyle.Render(fmt.Sprintf("↑/↓ scroll · q quit · %3.0f%%", percent))
}

func (rm resultModel) View() string {
	if !rm.ready {
		return "Loading…"
	}

	var b strings.Builder

	b.WriteString(rm.header())
	b.WriteString("\n")
	b.WriteString(rm.viewport.View())
	b.WriteString("\n")
	b.WriteString(rm.footer())

	return b.String()
}
