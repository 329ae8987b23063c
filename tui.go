package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dx7bridge/library"
	"dx7bridge/sysex"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Back   key.Binding
	Notes  key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

var keys = keyMap{
	Up:     Key("up", "up", "k"),
	Down:   Key("down", "down", "j"),
	Open:   Key("open/send", "enter", "l", "right"),
	Back:   Key("back", "esc", "h", "left"),
	Notes:  Key("test notes", "t"),
	Reload: Key("reload", "r"),
	Quit:   Key("quit", "q", "ctrl+c"),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Back, k.Notes, k.Reload, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// statusMsg reports the outcome of a send.
type statusMsg struct {
	text string
	err  error
}

type browser struct {
	lib      *library.Library
	dx       *DX7
	portName string

	banks      []library.Entry
	bank       int // -1 while the bank list is shown
	cursor     int
	bankCursor int
	height     int

	status    string
	statusErr bool
	help      help.Model
}

func newBrowser(lib *library.Library, dx *DX7, portName string) browser {
	return browser{
		lib:      lib,
		dx:       dx,
		portName: portName,
		banks:    lib.Banks(),
		bank:     -1,
		height:   20,
		help:     help.New(),
	}
}

func runTUI(lib *library.Library, dx *DX7, portName string) error {
	p := tea.NewProgram(newBrowser(lib, dx, portName), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m browser) Init() tea.Cmd {
	return nil
}

func (m browser) rows() int {
	if m.bank < 0 {
		return len(m.banks)
	}
	return len(m.banks[m.bank].Patches)
}

func sendPatchCmd(dx *DX7, p sysex.Patch) tea.Cmd {
	return func() tea.Msg {
		if err := dx.SendPatch(p); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "sent " + p.Name}
	}
}

func testNotesCmd(dx *DX7) tea.Cmd {
	return func() tea.Msg {
		if err := playTestNotes(context.Background(), dx); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "played test notes"}
	}
}

func (m browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-6, 3)
		m.help.Width = msg.Width
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.status, m.statusErr = msg.err.Error(), true
		} else {
			m.status, m.statusErr = msg.text, false
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < m.rows()-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Open):
			if m.rows() == 0 {
				return m, nil
			}
			if m.bank < 0 {
				m.bank, m.bankCursor, m.cursor = m.cursor, m.cursor, 0
				return m, nil
			}
			p := m.banks[m.bank].Patches[m.cursor]
			m.status, m.statusErr = "sending "+p.Name+"...", false
			return m, sendPatchCmd(m.dx, p)
		case key.Matches(msg, keys.Back):
			if m.bank >= 0 {
				m.bank, m.cursor = -1, m.bankCursor
			}
		case key.Matches(msg, keys.Notes):
			return m, testNotesCmd(m.dx)
		case key.Matches(msg, keys.Reload):
			if err := m.lib.Reload(); err != nil {
				m.status, m.statusErr = err.Error(), true
				return m, nil
			}
			m.banks = m.lib.Banks()
			m.bank, m.cursor, m.bankCursor = -1, 0, 0
			m.status, m.statusErr = fmt.Sprintf("reloaded %d banks", len(m.banks)), false
		}
	}
	return m, nil
}

func (m browser) View() string {
	var b strings.Builder

	port := m.portName
	if port == "" {
		port = "no output"
	}
	title := fmt.Sprintf("DX7 library %s  →  %s", m.lib.Root(), port)
	if m.bank >= 0 {
		title = fmt.Sprintf("%s  →  %s", m.banks[m.bank].Origin, port)
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")

	n := m.rows()
	if n == 0 {
		b.WriteString(dimStyle.Render("No .syx files found.") + "\n")
	}

	// Keep the cursor inside the visible window.
	first := 0
	if m.cursor >= m.height {
		first = m.cursor - m.height + 1
	}
	last := min(first+m.height, n)
	for i := first; i < last; i++ {
		var line string
		if m.bank < 0 {
			e := m.banks[i]
			line = fmt.Sprintf("%-40s %3d patches", e.Origin, len(e.Patches))
		} else {
			p := m.banks[m.bank].Patches[i]
			line = fmt.Sprintf("%2d  %-32s %s", i, p.Name, dimStyle.Render(p.Format.String()))
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render("ERROR: " + m.status))
		} else {
			b.WriteString(okStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}
