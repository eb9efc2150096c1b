package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/session"
)

type fakeChat struct {
	text string
	err  error
}

func (f *fakeChat) Handle(ctx context.Context, sess *session.Session, message string) (*agent.Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	sess.End(models.Turn{Role: models.RoleUser, Content: message}, models.Turn{Role: models.RoleAssistant, Content: f.text})
	return &agent.Reply{Text: f.text, Language: agent.German}, nil
}

func (f *fakeChat) Policy() *agent.Policy { return agent.DefaultPolicy() }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// drain runs commands until none is left and returns the final model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 1000 {
			t.Fatal("command loop did not terminate")
		}
		m, cmd = update(t, m, cmd())
	}
	return m
}

func ready(t *testing.T, chat Chat) Model {
	t.Helper()
	m, _ := update(t, New(chat, session.New(), 0), tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func typeMessage(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_streamsReply(t *testing.T) {
	reply := "Die Vorsorgeuntersuchung ist kostenlos.\nGeh am besten einmal im Jahr!"
	chat := &fakeChat{text: reply}
	m := ready(t, chat)
	if !strings.Contains(m.View(), "Astrabot") || !strings.Contains(m.View(), "Ich bin ein Chatbot.") {
		t.Errorf("greeting not rendered:\n%s", m.View())
	}

	m, cmd := typeMessage(t, m, "Was kostet die Vorsorgeuntersuchung?")
	if !m.busy || cmd == nil || m.input.Value() != "" {
		t.Fatalf("enter did not start a turn: busy=%v", m.busy)
	}

	// The reply arrives as one message per word chunk.
	m, cmd = update(t, m, cmd())
	chunks := 0
	for cmd != nil {
		msg := cmd()
		if _, ok := msg.(chunkMsg); ok {
			chunks++
		}
		m, cmd = update(t, m, msg)
	}
	if chunks != 10 {
		t.Errorf("chunks = %d, want 10", chunks)
	}
	last := m.entries[len(m.entries)-1]
	if last.user || last.text != reply {
		t.Errorf("last entry = %+v, want reply", last)
	}
	if m.busy || m.status != "" {
		t.Errorf("busy=%v status=%q after stream", m.busy, m.status)
	}
	if len(m.sess.History()) != 2 {
		t.Error("turn not recorded")
	}
}

func TestModel_ignoresEmptyAndBusyInput(t *testing.T) {
	m := ready(t, &fakeChat{text: "Hallo!"})
	m, cmd := typeMessage(t, m, "   ")
	if cmd != nil || m.busy {
		t.Error("empty input must not start a turn")
	}

	m, cmd = typeMessage(t, m, "Hallo")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m2, cmd2 := typeMessage(t, m, "Noch eine Frage")
	if cmd2 != nil || len(m2.entries) != len(m.entries) {
		t.Error("input accepted while a turn is running")
	}
	m = drain(t, m, cmd)
	if m.busy {
		t.Error("still busy")
	}
}

func TestModel_errorAndCancel(t *testing.T) {
	m := ready(t, &fakeChat{err: errors.New("boom")})
	m, cmd := typeMessage(t, m, "Hallo")
	m = drain(t, m, cmd)
	if m.busy || !strings.Contains(m.status, "boom") {
		t.Errorf("status = %q busy=%v", m.status, m.busy)
	}

	m = ready(t, &fakeChat{text: "Antwort"})
	m, cmd = typeMessage(t, m, "Hallo")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = drain(t, m, cmd)
	if m.busy || m.status != "Abgebrochen." {
		t.Errorf("status = %q busy=%v", m.status, m.busy)
	}
	if len(m.sess.History()) != 0 {
		t.Error("cancelled turn recorded")
	}
}

func TestModel_quit(t *testing.T) {
	m := ready(t, &fakeChat{text: "x"})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Ctrl+C did not quit")
	}
}
