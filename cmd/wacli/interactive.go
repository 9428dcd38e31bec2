package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wacli/metadata"
	"github.com/wippyai/wacli/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	argStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateDetail
)

type browserModel struct {
	cmds     []scan.Command
	filtered []scan.Command
	filter   textinput.Model
	selected int
	state    browserState
}

func newBrowserModel(cmds []scan.Command) *browserModel {
	filter := textinput.New()
	filter.Placeholder = "filter"
	filter.Prompt = "/ "
	filter.Width = 30
	filter.Focus()
	return &browserModel{
		cmds:     cmds,
		filtered: cmds,
		filter:   filter,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateDetail {
				m.state = stateList
				return m, nil
			}
			return m, tea.Quit

		case "up":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateList && m.selected < len(m.filtered)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateList && len(m.filtered) > 0 {
				m.state = stateDetail
			}
			return m, nil

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
			} else {
				m.filter.SetValue("")
				m.applyFilter()
			}
			return m, nil
		}
	}

	if m.state == stateList {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

func (m *browserModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	if query == "" {
		m.filtered = m.cmds
	} else {
		m.filtered = nil
		for _, c := range m.cmds {
			if strings.Contains(strings.ToLower(c.Name), query) {
				m.filtered = append(m.filtered, c)
			}
		}
	}
	if m.selected >= len(m.filtered) {
		m.selected = 0
	}
}

func (m *browserModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Command Schemas"))
	b.WriteString("\n\n")

	switch m.state {
	case stateList:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		if len(m.filtered) == 0 {
			b.WriteString(mutedStyle.Render("no commands match"))
			b.WriteString("\n")
		}
		for i, c := range m.filtered {
			line := m.formatCommand(c)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("↑/↓ select • enter details • esc clear • q quit"))

	case stateDetail:
		b.WriteString(m.renderDetail(m.filtered[m.selected].Schema()))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("esc back • q list"))
	}
	return b.String()
}

func (m *browserModel) formatCommand(c scan.Command) string {
	s := c.Schema()
	line := cmdStyle.Render(s.Name)
	if s.Summary != "" {
		line += "  " + s.Summary
	}
	if len(s.Aliases) > 0 {
		line += mutedStyle.Render("  (" + strings.Join(s.Aliases, ", ") + ")")
	}
	return line
}

func (m *browserModel) renderDetail(s metadata.CommandSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", cmdStyle.Render(s.Name))
	if s.Version != "" {
		fmt.Fprintf(&b, " v%s", s.Version)
	}
	b.WriteString("\n")
	if s.Summary != "" {
		fmt.Fprintf(&b, "%s\n", s.Summary)
	}
	if s.Usage != "" {
		fmt.Fprintf(&b, "\nUsage: %s\n", s.Usage)
	}
	if s.Description != nil {
		fmt.Fprintf(&b, "\n%s\n", *s.Description)
	}

	if len(s.Args) > 0 {
		b.WriteString("\nArguments:\n")
		for _, a := range s.Args {
			b.WriteString("  " + argStyle.Render("--"+a.Name))
			if a.Short != nil {
				b.WriteString(", " + argStyle.Render("-"+*a.Short))
			}
			if a.ValueType != "" {
				b.WriteString(" " + mutedStyle.Render("<"+a.ValueType+">"))
			}
			if a.Required {
				b.WriteString(" (required)")
			}
			if a.Help != nil {
				b.WriteString("  " + *a.Help)
			}
			b.WriteString("\n")
			if len(a.PossibleValues) > 0 {
				fmt.Fprintf(&b, "      one of: %s\n", strings.Join(a.PossibleValues, ", "))
			}
			if a.DefaultValue != nil {
				fmt.Fprintf(&b, "      default: %s\n", *a.DefaultValue)
			}
		}
	}

	if len(s.Examples) > 0 {
		b.WriteString("\nExamples:\n")
		for _, e := range s.Examples {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return b.String()
}

func runBrowser(cmds []scan.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newBrowserModel(cmds), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
