package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/roundup/internal/edit"
)

// maxTranscriptLines caps the reply area under the draft.
const maxTranscriptLines = 10

// Editor is the part of an edit session the TUI drives.
type Editor interface {
	Handle(ctx context.Context, text string) edit.Response
	Abort() edit.Response
	Summary() string
}

// Commands are the side effects the App may trigger. Each returns a Cmd so
// the session runs off the render loop.
type Commands struct {
	Load   func() tea.Cmd
	Submit func(text string) tea.Cmd
	Abort  func() tea.Cmd
}

// SessionCommands binds Commands to an edit session.
func SessionCommands(ctx context.Context, ed Editor) Commands {
	return Commands{
		Load: func() tea.Cmd {
			return func() tea.Msg {
				return DraftLoaded{Summary: ed.Summary()}
			}
		},
		Submit: func(text string) tea.Cmd {
			return func() tea.Msg {
				return Replied{Command: text, Response: ed.Handle(ctx, text)}
			}
		},
		Abort: func() tea.Cmd {
			return func() tea.Msg {
				return Aborted{Response: ed.Abort()}
			}
		},
	}
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the session. It talks to it through Commands
// and receives results via messages.
type App struct {
	cmds Commands

	input      textinput.Model
	draft      viewport.Model
	spin       spinner.Model
	summary    string
	transcript []exchange
	state      edit.State

	err      error
	width    int
	height   int
	ready    bool
	busy     bool
	quitting bool
}

// NewApp creates an App driven by cmds.
func NewApp(cmds Commands) App {
	ti := textinput.New()
	ti.Placeholder = "move the transit story to politics"
	ti.Prompt = "> "
	ti.PromptStyle = PromptStyle
	ti.CharLimit = 280
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorHighlight)

	return App{
		cmds:  cmds,
		input: ti,
		draft: viewport.New(0, 0),
		spin:  s,
		busy:  cmds.Load != nil,
	}
}

// Init loads the starting draft.
func (a App) Init() tea.Cmd {
	if a.cmds.Load == nil {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, a.spin.Tick, a.cmds.Load())
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		return a, nil

	case DraftLoaded:
		a.busy = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.setSummary(msg.Summary)
		return a, nil

	case Replied:
		a.busy = false
		a.transcript = append(a.transcript, exchange{command: msg.Command, resp: msg.Response})
		if msg.Response.Summary != "" {
			a.setSummary(msg.Response.Summary)
		}
		a.state = msg.Response.State
		if a.state == edit.Finished || a.state == edit.Aborted {
			a.quitting = true
			return a, tea.Quit
		}
		return a, nil

	case Aborted:
		a.busy = false
		a.transcript = append(a.transcript, exchange{resp: msg.Response})
		if msg.Response.Summary != "" {
			a.setSummary(msg.Response.Summary)
		}
		a.state = msg.Response.State
		a.quitting = true
		return a, tea.Quit

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	a.err = nil

	switch msg.String() {
	case "ctrl+c":
		if a.quitting || a.cmds.Abort == nil || a.state == edit.Finished || a.state == edit.Aborted {
			a.quitting = true
			return a, tea.Quit
		}
		a.busy = true
		a.quitting = true
		return a, a.cmds.Abort()

	case "enter":
		text := strings.TrimSpace(a.input.Value())
		if a.busy || text == "" || a.cmds.Submit == nil {
			return a, nil
		}
		a.input.SetValue("")
		a.busy = true
		return a, tea.Batch(a.cmds.Submit(text), a.spin.Tick)

	case "esc":
		a.input.SetValue("")
		return a, nil

	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		a.draft, cmd = a.draft.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) setSummary(summary string) {
	a.summary = summary
	a.draft.SetContent(styleDraft(summary, a.draft.Width))
}

// transcriptHeight is the number of lines given to replies.
func (a App) transcriptHeight() int {
	return min(maxTranscriptLines, a.height/3)
}

// layout sizes the panes: title, draft, transcript, input, status.
func (a *App) layout() {
	a.input.Width = max(10, a.width-4)
	a.draft.Width = max(10, a.width-2)
	a.draft.Height = max(3, a.height-1-draftPaneChrome-a.transcriptHeight()-2)
	a.draft.SetContent(styleDraft(a.summary, a.draft.Width))
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	title := TitleBar.Width(a.width).Render("Roundup · " + a.state.String())
	draft := DraftPane.Render(a.draft.View())
	transcript := lipgloss.NewStyle().Height(a.transcriptHeight()).Render(
		renderTranscript(a.transcript, a.width, a.transcriptHeight()))

	input := a.input.View()
	if a.busy {
		input = a.spin.View() + " working..."
	}

	parts := []string{title, draft, transcript, input}
	if a.err != nil {
		parts = append(parts, ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()))
	}
	parts = append(parts, a.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a App) statusBar() string {
	hints := []string{
		StatusBarKey.Render("enter") + StatusBarText.Render(" send"),
		StatusBarKey.Render("pgup/pgdn") + StatusBarText.Render(" scroll draft"),
		StatusBarKey.Render("ctrl+c") + StatusBarText.Render(" abort"),
	}
	return StatusBar.Width(a.width).Render(strings.Join(hints, "  "))
}

// State returns the last session state seen (for testing).
func (a App) State() edit.State {
	return a.state
}

// Busy reports whether a command is in flight (for testing).
func (a App) Busy() bool {
	return a.busy
}

// Summary returns the current draft summary (for testing).
func (a App) Summary() string {
	return a.summary
}

// Input returns the pending command text (for testing).
func (a App) Input() string {
	return a.input.Value()
}
