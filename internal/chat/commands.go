package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// slashCommand is one interactive command. Commands dispatch synchronously
// and never start a completion request.
type slashCommand struct {
	name    string
	aliases []string
	desc    string
	run     func(m *Model) (tea.Model, tea.Cmd)
}

var commands []slashCommand

// Populated in init to break the initialization cycle between commands
// and helpText.
func init() {
	commands = []slashCommand{
		{
			name:    "quit",
			aliases: []string{"q"},
			desc:    "Exit the chat",
			run: func(m *Model) (tea.Model, tea.Cmd) {
				m.quitting = true
				return m, tea.Quit
			},
		},
		{
			name:    "help",
			aliases: []string{"h"},
			desc:    "Show available commands",
			run: func(m *Model) (tea.Model, tea.Cmd) {
				m.note = helpText()
				m.refresh()
				return m, nil
			},
		},
		{
			name: "history",
			desc: "Reload and show the full transcript",
			run: func(m *Model) (tea.Model, tea.Cmd) {
				history, err := m.db.SessionMessages(m.sess.ID)
				if err != nil {
					m.errLine = fmt.Sprintf("load history: %v", err)
					return m, nil
				}
				m.history = history
				m.viewOffset = 0
				m.refresh()
				return m, nil
			},
		},
		{
			name: "clear",
			desc: "Clear the screen (messages stay persisted)",
			run: func(m *Model) (tea.Model, tea.Cmd) {
				m.viewOffset = len(m.history)
				// New epoch: an in-flight result must not repaint the
				// cleared screen or persist against it.
				m.epoch++
				m.st = stateIdle
				m.refresh()
				return m, nil
			},
		},
	}
}

func (m *Model) runCommand(input string) (tea.Model, tea.Cmd) {
	name := strings.ToLower(strings.TrimPrefix(strings.Fields(input)[0], "/"))

	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(m)
		}
		for _, alias := range cmd.aliases {
			if alias == name {
				return cmd.run(m)
			}
		}
	}

	m.errLine = fmt.Sprintf("unknown command /%s — try /help", name)
	m.refresh()
	return m, nil
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, cmd := range commands {
		name := "/" + cmd.name
		if len(cmd.aliases) > 0 {
			name += " (/" + strings.Join(cmd.aliases, ", /") + ")"
		}
		sb.WriteString(fmt.Sprintf("  %-18s %s\n", name, cmd.desc))
	}
	return sb.String()
}
