package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/interp"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *interp.Runtime
	entries  []entryInfo
	status   string
	result   string
	input    textinput.Model
	selected int
	state    modelState
	heapKiB  uint32
}

type modelState int

const (
	stateSelectEntry modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(heapKiB uint32) *interactiveModel {
	return &interactiveModel{
		heapKiB: heapKiB,
		state:   stateSelectEntry,
	}
}

type loadedMsg struct {
	err     error
	rt      *interp.Runtime
	entries []entryInfo
	status  string
}

type callResultMsg struct {
	err    error
	result string
	status string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadRuntime
}

func (m *interactiveModel) loadRuntime() tea.Msg {
	rt, err := interp.New(interp.Config{InitialHeap: m.heapKiB * 1024})
	if err != nil {
		return loadedMsg{err: err}
	}

	if err := registerDemoTypes(); err != nil {
		rt.Close()
		return loadedMsg{err: err}
	}

	var entries []entryInfo
	var status string
	err = attach.With(rt, func(tok attach.Token) error {
		if err := demoModule().Register(tok); err != nil {
			return err
		}
		var err error
		if entries, err = moduleEntries(tok, "shapes"); err != nil {
			return err
		}
		status = runtimeStatus(rt)
		return nil
	})
	if err != nil {
		rt.Close()
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, entries: entries, status: status}
}

func runtimeStatus(rt *interp.Runtime) string {
	return fmt.Sprintf("heap %d B • store %d • tracked %d",
		rt.HeapBytes(), rt.Store().Len(), rt.TrackedCount())
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.rt != nil {
				m.rt.Close()
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectEntry && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectEntry && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "g":
			if m.state == stateSelectEntry {
				return m, m.runCollection
			}

		case "enter":
			switch m.state {
			case stateSelectEntry:
				if len(m.entries) == 0 {
					break
				}
				m.prepareInput()
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callEntry

			case stateShowResult:
				m.state = stateSelectEntry
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectEntry
			case stateShowResult:
				m.state = stateSelectEntry
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.entries = msg.entries
		m.status = msg.status

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		if msg.status != "" {
			m.status = msg.status
		}
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "args (comma-separated)"
	ti.Prompt = "args: "
	ti.Width = 40
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) callEntry() tea.Msg {
	name := m.entries[m.selected].name
	argsStr := strings.TrimSpace(m.input.Value())

	result, err := attach.WithValue(m.rt, func(tok attach.Token) (string, error) {
		target, err := moduleLookup(tok, "shapes", name)
		if err != nil {
			return "", err
		}
		defer target.Drop()

		args, cleanup, err := parseArgs(tok, argsStr)
		if err != nil {
			return "", err
		}
		defer cleanup()

		res, err := target.Bind(tok).Call(args...)
		if err != nil {
			return "", err
		}
		defer res.Drop()

		repr, err := res.Bind(tok).Repr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s  (refcount %d)", repr, m.rt.Refcount(res.Ref())), nil
	})
	if err != nil {
		return callResultMsg{err: err, status: runtimeStatus(m.rt)}
	}

	return callResultMsg{result: result, status: runtimeStatus(m.rt)}
}

func (m *interactiveModel) runCollection() tea.Msg {
	var stats interp.CollectStats
	err := attach.With(m.rt, func(attach.Token) error {
		stats = m.rt.Collect()
		return nil
	})
	if err != nil {
		return callResultMsg{err: err, status: runtimeStatus(m.rt)}
	}
	return callResultMsg{
		result: fmt.Sprintf("collection: %d tracked, %d collected", stats.Tracked, stats.Collected),
		status: runtimeStatus(m.rt),
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.rt == nil {
		return "Starting runtime..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("interp demo"))
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(m.status))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectEntry:
		b.WriteString("Select a module entry to call:\n\n")
		for i, e := range m.entries {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatEntry(e)))
			} else {
				b.WriteString(cursor + m.formatEntry(e))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • g collect • q quit"))

	case stateInputArgs:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(e.name)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(e.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatEntry(e entryInfo) string {
	return funcStyle.Render(e.name) + "  " + typeStyle.Render(e.kind)
}

func runInteractive(heapKiB uint32) error {
	p := tea.NewProgram(newInteractiveModel(heapKiB), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
