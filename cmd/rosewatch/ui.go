// # cmd/rosewatch/ui.go
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rosewatch/internal/core/app"
	"rosewatch/internal/engine/ast"
	"rosewatch/internal/engine/validate"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list        list.Model
	cycles      [][]string
	diagnostics []validate.Diagnostic
	lastUpdate  time.Time
	typeCount   int
	fileCount   int
}

type updateMsg struct {
	update app.Update
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.cycles = msg.update.Cycles
		m.diagnostics = msg.update.Diagnostics
		m.typeCount = msg.update.TypeCount
		m.fileCount = msg.update.FileCount
		m.lastUpdate = time.Now()

		items := []list.Item{}
		for _, c := range m.cycles {
			items = append(items, item{
				title: "Inheritance Cycle",
				desc:  strings.Join(c, " -> "),
			})
		}
		for _, d := range m.diagnostics {
			items = append(items, item{
				title: fmt.Sprintf("%s [%s]", strings.ToUpper(d.Severity.String()), d.RuleID),
				desc:  fmt.Sprintf("%s in %s:%d", d.Message, d.Path, d.Range.Line),
			})
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files | %d types",
		m.lastUpdate.Format("15:04:05"), m.fileCount, m.typeCount))

	errorCount := 0
	for _, d := range m.diagnostics {
		if d.Severity == ast.SeverityError {
			errorCount++
		}
	}

	var summary string
	if len(m.cycles) == 0 && len(m.diagnostics) == 0 {
		summary = successStyle.Render("✅ Model Clean")
	} else {
		summary = fmt.Sprintf("⚠️  %s | %s",
			errorStyle.Render(fmt.Sprintf("%d Cycles / %d Errors", len(m.cycles), errorCount)),
			warningStyle.Render(fmt.Sprintf("%d Diagnostics", len(m.diagnostics))))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Rosetta Model Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Diagnostics"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		lastUpdate: time.Now(),
	}
}

func runUI(ctx context.Context, a *app.App) error {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())

	a.SetUpdateHandler(func(u app.Update) {
		p.Send(updateMsg{update: u})
	})

	// Seed the view from the last validation pass before events arrive.
	go func() {
		p.Send(updateMsg{update: a.CurrentUpdate(ctx)})
	}()

	_, err := p.Run()
	return err
}
