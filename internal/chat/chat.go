// Package chat runs the interactive conversation loop.
//
// One Model instance drives one session. All mutable state lives in the
// Bubble Tea update loop; completion requests run on their own goroutine
// and report back as messages, so the loop stays the single writer. Results
// carry the epoch that issued them and are dropped on mismatch, which
// covers both quit and /clear while a request is in flight.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/llm"
	"github.com/lazypower/recall/internal/store"
)

type state int

const (
	stateIdle state = iota
	stateAwaiting
)

// Model is the orchestrator state machine: Idle accepts input, Awaiting has
// one completion in flight, quit is terminal.
type Model struct {
	db     *store.DB
	client llm.Client // nil when completion is disabled
	sess   *store.Session
	opts   llm.Options

	st       state
	quitting bool
	epoch    int
	errLine  string
	note     string

	history    []store.Message
	viewOffset int // first history index shown; /clear advances it

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	ready    bool
	width    int
	height   int
}

// completionMsg delivers an async completion result into the loop.
type completionMsg struct {
	epoch int
	res   *llm.Result
	err   error
}

// New creates a chat model bound to one session. client may be nil; the
// loop then persists user messages but reports completion as disabled.
func New(db *store.DB, sess *store.Session, client llm.Client, cfg config.LLMConfig) (*Model, error) {
	history, err := db.SessionMessages(sess.ID)
	if err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message, or /help"
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &Model{
		db:      db,
		client:  client,
		sess:    sess,
		opts:    llm.Options{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
		history: history,
		input:   ti,
		spin:    sp,
	}
	if client == nil {
		m.note = "completion disabled: set RECALL_API_KEY to enable replies"
	}
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			// Unconditional quit, even with a request in flight; the
			// epoch guard discards whatever comes back.
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case completionMsg:
		return m.handleCompletion(msg)

	case spinner.TickMsg:
		if m.st == stateAwaiting {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	if m.st == stateIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	if m.st != stateIdle {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.errLine = ""
	m.note = ""

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}
	return m.sendMessage(text)
}

// sendMessage persists the user turn, then issues the completion request.
// Persist-first means input survives a network failure or a crash mid
// request; the cost is a possible user message with no paired reply.
func (m *Model) sendMessage(text string) (tea.Model, tea.Cmd) {
	userMsg, err := m.db.StoreMessage(m.sess.ID, store.RoleUser, text, nil)
	if err != nil {
		m.errLine = fmt.Sprintf("store message: %v", err)
		m.refresh()
		return m, nil
	}
	m.history = append(m.history, *userMsg)

	if m.client == nil {
		m.note = "completion disabled: set RECALL_API_KEY to enable replies"
		m.refresh()
		return m, nil
	}

	m.st = stateAwaiting
	conv := toLLMMessages(m.history)
	m.refresh()
	return m, tea.Batch(m.spin.Tick, requestCompletion(m.client, conv, m.opts, m.epoch))
}

// requestCompletion runs one blocking completion off the loop and delivers
// the result tagged with the issuing epoch.
func requestCompletion(client llm.Client, msgs []llm.Message, opts llm.Options, epoch int) tea.Cmd {
	return func() tea.Msg {
		// The client enforces its own request timeout.
		res, err := client.Complete(context.Background(), msgs, opts)
		return completionMsg{epoch: epoch, res: res, err: err}
	}
}

func (m *Model) handleCompletion(msg completionMsg) (tea.Model, tea.Cmd) {
	// Stale-result guard: only apply results from the current epoch to a
	// live loop.
	if msg.epoch != m.epoch || m.quitting {
		return m, nil
	}
	m.st = stateIdle

	if msg.err != nil {
		// Recoverable: shown inline, no assistant message persisted.
		m.errLine = fmt.Sprintf("completion failed: %v", msg.err)
		m.refresh()
		return m, nil
	}

	asst, err := m.db.StoreMessage(m.sess.ID, store.RoleAssistant, msg.res.Content,
		&store.MessageOpts{Model: msg.res.Model})
	if err != nil {
		m.errLine = fmt.Sprintf("store reply: %v", err)
		m.refresh()
		return m, nil
	}
	m.history = append(m.history, *asst)
	m.refresh()
	return m, nil
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := 2
	vpHeight := msg.Height - headerHeight - statusHeight - inputHeight

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 4
	m.refresh()
	return m, nil
}

// toLLMMessages projects the persisted transcript into the wire shape.
func toLLMMessages(history []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
