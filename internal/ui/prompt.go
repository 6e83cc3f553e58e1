package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type promptKeys struct {
	Toggle  key.Binding
	Yes     key.Binding
	No      key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultPromptKeys = promptKeys{
	Toggle:  key.NewBinding(key.WithKeys("left", "right", "tab", "h", "l"), key.WithHelp("←/→", "choose")),
	Yes:     key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:      key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "no")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc", "ask later")),
}

// BeginnerPrompt asks a yes/no question. Yes is preselected.
type BeginnerPrompt struct {
	question string
	keys     promptKeys
	yes      bool
	answered bool
	quitting bool
	width    int
}

// NewBeginnerPrompt returns the first-run question model.
func NewBeginnerPrompt(question string) *BeginnerPrompt {
	return &BeginnerPrompt{question: question, keys: defaultPromptKeys, yes: true, width: 72}
}

// Result reports the choice. answered is false when the prompt was
// dismissed.
func (p *BeginnerPrompt) Result() (beginner, answered bool) {
	return p.yes, p.answered
}

func (p *BeginnerPrompt) Init() tea.Cmd {
	return nil
}

func (p *BeginnerPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			p.width = msg.Width
		}
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Cancel):
			p.quitting = true
			return p, tea.Quit
		case key.Matches(msg, p.keys.Toggle):
			p.yes = !p.yes
		case key.Matches(msg, p.keys.Yes):
			p.yes = true
			return p.finish()
		case key.Matches(msg, p.keys.No):
			p.yes = false
			return p.finish()
		case key.Matches(msg, p.keys.Confirm):
			return p.finish()
		}
	}
	return p, nil
}

func (p *BeginnerPrompt) finish() (tea.Model, tea.Cmd) {
	p.answered = true
	p.quitting = true
	return p, tea.Quit
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 2)
	optionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Padding(0, 2)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (p *BeginnerPrompt) View() string {
	if p.quitting {
		return ""
	}
	yes, no := optionStyle.Render("Yes"), selectedStyle.Render("No")
	if p.yes {
		yes, no = selectedStyle.Render("Yes"), optionStyle.Render("No")
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Width(max(p.width-2, 20)).Render(p.question))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, yes, " ", no))
	b.WriteString("\n\n")
	help := []string{}
	for _, k := range []key.Binding{p.keys.Toggle, p.keys.Confirm, p.keys.Cancel} {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	b.WriteString("\n")
	return b.String()
}
