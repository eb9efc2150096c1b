// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/session"
)

// Chat is the controller surface the UI talks to.
type Chat interface {
	Handle(ctx context.Context, sess *session.Session, message string) (*agent.Reply, error)
	Policy() *agent.Policy
}

type entry struct {
	user bool
	text string
}

type replyMsg struct {
	reply *agent.Reply
	err   error
}

type chunkMsg string

type streamDoneMsg struct{ err error }

// Model is the Bubble Tea model of a chat session.
type Model struct {
	chat  Chat
	sess  *session.Session
	delay time.Duration
	title string

	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	ready    bool
	width    int

	busy   bool
	ctx    context.Context
	cancel context.CancelFunc
	next   func() (string, error, bool)
	stop   func()
}

// New returns a model for sess that paces streamed replies by delay.
func New(chat Chat, sess *session.Session, delay time.Duration) Model {
	ui := chat.Policy().UI()
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = ui.Placeholder
	ti.Focus()
	ti.CharLimit = 2000
	return Model{
		chat:     chat,
		sess:     sess,
		delay:    delay,
		title:    ui.Title,
		input:    ti,
		viewport: viewport.New(0, 0),
		entries:  []entry{{text: strings.Join(ui.Greeting, "\n")}},
		status:   "Enter sendet · Esc bricht ab · Ctrl+C beendet",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, reply and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, qh := inputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-qh-3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.abort()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy {
				m.abort()
				m.status = "Abgebrochen."
			}
			return m, nil
		case tea.KeyEnter:
			return m.send()
		}

	case replyMsg:
		if msg.err != nil {
			m.finish()
			m.status = errorStatus(msg.err)
			return m, nil
		}
		m.entries = append(m.entries, entry{})
		m.next, m.stop = iter.Pull2(msg.reply.Chunks(m.ctx, m.delay))
		m.refresh()
		return m, m.nextChunk()

	case chunkMsg:
		m.entries[len(m.entries)-1].text += string(msg)
		m.refresh()
		return m, m.nextChunk()

	case streamDoneMsg:
		m.finish()
		if msg.err != nil {
			m.status = errorStatus(msg.err)
		} else {
			m.status = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}
	m.input.Reset()
	m.entries = append(m.entries, entry{user: true, text: text})
	m.busy = true
	m.status = "AstraBot denkt nach ..."
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx, m.cancel = ctx, cancel
	m.refresh()

	chat, sess := m.chat, m.sess
	return m, func() tea.Msg {
		reply, err := chat.Handle(ctx, sess, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) nextChunk() tea.Cmd {
	next := m.next
	return func() tea.Msg {
		chunk, err, ok := next()
		if !ok || err != nil {
			return streamDoneMsg{err: err}
		}
		return chunkMsg(chunk)
	}
}

func (m *Model) abort() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) finish() {
	if m.stop != nil {
		m.stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.next, m.stop, m.ctx, m.cancel = nil, nil, nil, nil
	m.busy = false
}

func errorStatus(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Abgebrochen."
	}
	return "Fehler: " + err.Error()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

// View renders the conversation, the input box and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Lade ..."
	}
	header := titleStyle.Render(m.title)
	input := inputBoxStyle.Width(max(10, m.width-2)).Render(m.input.View())
	return header + "\n" + m.viewport.View() + "\n" + input + "\n" + statusStyle.Render(m.status)
}

func (m Model) renderEntries() string {
	width := max(20, m.width-4)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.user {
			b.WriteString(userLabel.Render("Du"))
		} else {
			b.WriteString(botLabel.Render(m.title))
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
	}
	return b.String()
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	botLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
