package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
)

// TitleBar style for the top line.
var TitleBar = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// DraftPane frames the draft summary viewport.
var DraftPane = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(colorMuted)

// draftPaneChrome is the lines DraftPane's border takes (top + bottom).
const draftPaneChrome = 2

// SectionHeader style for section headings inside the draft.
var SectionHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// CommandEcho style for the editor's own command in the transcript.
var CommandEcho = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ReplyApplied style for replies that changed the draft.
var ReplyApplied = lipgloss.NewStyle().
	Foreground(colorSuccess)

// ReplyText style for every other reply.
var ReplyText = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255"))

// WarningStyle for capacity warnings.
var WarningStyle = lipgloss.NewStyle().
	Foreground(colorWarning)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// PromptStyle for the command input prompt.
var PromptStyle = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)
