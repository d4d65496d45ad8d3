// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/wire"
)

// maxScrollback bounds the number of lines kept in the scrollback.
const maxScrollback = 2000

// Sender is the outgoing half of a relay connection.
type Sender interface {
	SendLine(line string) error
}

// Event is one thing read from the relay: a delivery, or the error
// that ended the connection.
type Event struct {
	Delivery wire.Delivery
	Err      error
}

// Listen reads conn on a background goroutine and returns the events.
// The channel closes after the event carrying the read error.
func Listen(conn *relayclient.Conn) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		for {
			delivery, err := conn.Next()
			if err != nil {
				events <- Event{Err: err}
				return
			}
			events <- Event{Delivery: delivery}
		}
	}()
	return events
}

type eventMsg Event

// Model is the Bubble Tea model for the chat client.
type Model struct {
	sender   Sender
	handle   string
	events   <-chan Event
	theme    Theme
	keys     KeyMap
	now      func() time.Time
	location *time.Location

	lines    []string
	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	closed   bool
}

// NewModel creates the client model for a logged-in handle. roster is
// the login roster; events usually comes from [Listen].
func NewModel(sender Sender, handle string, roster []string, events <-chan Event) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "user: message, !check, or exit"
	input.CharLimit = wire.MaxFrameSize - 1
	input.Focus()

	model := Model{
		sender:   sender,
		handle:   handle,
		events:   events,
		theme:    DefaultTheme,
		keys:     DefaultKeyMap,
		now:      time.Now,
		location: time.Local,
		viewport: viewport.New(0, 0),
		input:    input,
	}
	model.appendLine(renderDelivery(model.theme, wire.Delivery{
		Kind: wire.KindSystem,
		Body: wire.FormatRoster(roster),
	}, model.location))
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForEvent(model.events))
}

func listenForEvent(events <-chan Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(event)
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.layout()
		return model, nil

	case eventMsg:
		if message.Err != nil {
			model.closed = true
			model.appendLine(renderError(model.theme, "Connection to the relay closed."))
			return model, tea.Quit
		}
		model.appendLine(renderDelivery(model.theme, message.Delivery, model.location))
		return model, listenForEvent(model.events)

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model.quit()
		case key.Matches(message, model.keys.Send):
			return model.submit()
		case key.Matches(message, model.keys.Check):
			model.send(wire.CommandCheck)
			return model, nil
		case key.Matches(message, model.keys.PageUp):
			model.viewport.PageUp()
			return model, nil
		case key.Matches(message, model.keys.PageDown):
			model.viewport.PageDown()
			return model, nil
		}
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

// submit sends the input line.
func (model Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(model.input.Value())
	model.input.SetValue("")
	if line == "" {
		return model, nil
	}
	if wire.ClassifyCommand(line).Kind == wire.CommandQuit {
		return model.quit()
	}
	model.send(line)
	return model, nil
}

func (model *Model) send(line string) {
	if model.closed {
		model.appendLine(renderError(model.theme, "Not connected."))
		return
	}
	if err := model.sender.SendLine(line); err != nil {
		model.appendLine(renderError(model.theme, "Send failed: "+err.Error()))
		return
	}
	model.appendLine(renderOutgoing(model.theme, line, model.now(), model.location))
}

func (model Model) quit() (tea.Model, tea.Cmd) {
	if !model.closed {
		_ = model.sender.SendLine(wire.CommandExit)
		model.closed = true
	}
	return model, tea.Quit
}

func (model *Model) appendLine(line string) {
	model.lines = append(model.lines, line)
	if len(model.lines) > maxScrollback {
		model.lines = model.lines[len(model.lines)-maxScrollback:]
	}
	atBottom := model.viewport.AtBottom()
	model.viewport.SetContent(strings.Join(model.lines, "\n"))
	if atBottom {
		model.viewport.GotoBottom()
	}
}

// layout sizes the viewport to the space left by the header, input,
// and help lines.
func (model *Model) layout() {
	model.viewport.Width = model.width
	model.viewport.Height = max(1, model.height-3)
	model.input.Width = max(10, model.width-len(model.input.Prompt)-1)
	model.viewport.SetContent(strings.Join(model.lines, "\n"))
	model.viewport.GotoBottom()
}

// View implements tea.Model.
func (model Model) View() string {
	header := lipgloss.NewStyle().
		Foreground(model.theme.HeaderForeground).
		Background(model.theme.HeaderBackground).
		Bold(true).
		Width(model.width).
		Render(" parley | " + model.handle)
	help := lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(model.helpLine())
	return lipgloss.JoinVertical(lipgloss.Left, header, model.viewport.View(), model.input.View(), help)
}

func (model Model) helpLine() string {
	bindings := []key.Binding{model.keys.Send, model.keys.Check, model.keys.PageUp, model.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, "  ")
}

// Lines returns the scrollback, oldest first.
func (model Model) Lines() []string {
	return append([]string(nil), model.lines...)
}
