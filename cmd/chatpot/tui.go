package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	pipeline "github.com/chatpot/chatpot-core/core"
	"github.com/chatpot/chatpot-core/core/chat"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type deltaMsg string

type phaseMsg pipeline.Phase

type turnDoneMsg struct {
	err error
}

// programHandle lets pipeline callbacks post messages into the running
// program; callbacks are registered before the program exists.
type programHandle struct {
	mu      sync.Mutex
	program *tea.Program
}

func (h *programHandle) send(msg tea.Msg) {
	h.mu.Lock()
	program := h.program
	h.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

type model struct {
	controller *pipeline.Controller
	handle     *programHandle

	input     textinput.Model
	width     int
	height    int
	lines     []string
	streaming strings.Builder
	phase     pipeline.Phase
	recording bool
	busy      bool
}

func newModel(opts []pipeline.ControllerOption) *model {
	handle := &programHandle{}
	opts = append(opts,
		pipeline.WithDeltaCallback(func(delta string) { handle.send(deltaMsg(delta)) }),
		pipeline.WithPhaseCallback(func(phase pipeline.Phase) { handle.send(phaseMsg(phase)) }),
	)

	input := textinput.New()
	input.Placeholder = "Type a message, Ctrl+R to talk, Ctrl+G to cancel"
	input.Focus()
	input.CharLimit = 2000

	return &model{
		controller: pipeline.NewController(opts...),
		handle:     handle,
		input:      input,
		phase:      pipeline.PhaseIdle,
		width:      80,
		height:     24,
	}
}

func (m *model) attach(program *tea.Program) {
	m.handle.mu.Lock()
	defer m.handle.mu.Unlock()
	m.handle.program = program
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyCtrlG:
			m.controller.Cancel()
			return m, nil
		case tea.KeyCtrlR:
			return m, m.toggleRecording()
		case tea.KeyEnter:
			return m, m.submit()
		}

	case deltaMsg:
		m.streaming.WriteString(string(msg))
		return m, nil

	case phaseMsg:
		m.phase = pipeline.Phase(msg)
		return m, nil

	case turnDoneMsg:
		m.busy = false
		m.recording = false
		m.phase = pipeline.PhaseIdle
		m.streaming.Reset()
		m.refreshTranscript()
		if msg.err != nil && !errors.Is(msg.err, pipeline.ErrTurnActive) {
			m.lines = append(m.lines, errorStyle.Render(msg.err.Error()))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return nil
	}
	m.input.Reset()
	m.busy = true
	m.lines = append(m.lines, userStyle.Render("you: ")+text)

	return func() tea.Msg {
		_, err := m.controller.SendText(context.Background(), text)
		return turnDoneMsg{err: err}
	}
}

func (m *model) toggleRecording() tea.Cmd {
	if m.recording {
		m.recording = false
		m.busy = true
		return func() tea.Msg {
			_, err := m.controller.StopRecording()
			return turnDoneMsg{err: err}
		}
	}

	if m.busy {
		return nil
	}
	m.recording = true
	return func() tea.Msg {
		if _, err := m.controller.StartRecording(context.Background()); err != nil {
			return turnDoneMsg{err: err}
		}
		return nil
	}
}

// refreshTranscript rebuilds the rendered history from the controller's
// conversation snapshot.
func (m *model) refreshTranscript() {
	messages := m.controller.Messages()
	m.lines = m.lines[:0]
	for _, message := range messages {
		switch message.Role {
		case chat.RoleUser:
			m.lines = append(m.lines, userStyle.Render("you: ")+message.Content)
		case chat.RoleAssistant:
			m.lines = append(m.lines, assistantStyle.Render("chatpot: ")+message.Content)
		}
	}
}

func (m *model) View() string {
	var b strings.Builder

	transcript := strings.Join(m.lines, "\n")
	if m.streaming.Len() > 0 {
		transcript += "\n" + assistantStyle.Render("chatpot: ") + m.streaming.String()
	}
	b.WriteString(wordwrap.String(transcript, max(m.width-2, 20)))
	b.WriteString("\n\n")

	status := string(m.phase)
	if m.recording {
		status = "recording, Ctrl+R to stop"
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("%d messages, Ctrl+C to quit", len(m.lines))))
	return b.String()
}
