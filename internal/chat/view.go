package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lazypower/recall/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	toolMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "initializing..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("recall — " + m.sess.ProjectPath))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.st == stateAwaiting {
		b.WriteString(m.spin.View() + " waiting for reply...")
	} else {
		b.WriteString("> " + m.input.View())
	}
	return b.String()
}

func (m *Model) renderTranscript() string {
	var b strings.Builder

	for _, msg := range m.history[m.viewOffset:] {
		switch msg.Role {
		case store.RoleUser:
			b.WriteString(userStyle.Render("you") + "  " + msg.Content + "\n")
		case store.RoleAssistant:
			label := "assistant"
			if msg.Model != "" {
				label = msg.Model
			}
			b.WriteString(assistantStyle.Render(label+"  "+msg.Content) + "\n")
		default:
			b.WriteString(toolMsgStyle.Render(msg.Role+"  "+msg.Content) + "\n")
		}
		b.WriteString("\n")
	}

	if m.note != "" {
		b.WriteString(noteStyle.Render(m.note) + "\n")
	}
	if m.errLine != "" {
		b.WriteString(errorStyle.Render(m.errLine) + "\n")
	}
	return b.String()
}

func (m *Model) statusLine() string {
	st := "idle"
	if m.st == stateAwaiting {
		st = "thinking"
	}
	return statusStyle.Render(fmt.Sprintf("%s · %d messages · ~%d tokens · %s",
		st, len(m.history), estimateTokens(m.history), m.opts.Model))
}

// estimateTokens is a cheap chars/4 approximation for the status line; the
// real count lives with the backend.
func estimateTokens(history []store.Message) int {
	total := 0
	for _, msg := range history {
		total += 4 // per-message overhead
		total += (len(msg.Content) + 3) / 4
	}
	return total
}
