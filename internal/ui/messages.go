// Package ui provides the Bubble Tea TUI for the edit session.
package ui

import "github.com/abelbrown/roundup/internal/edit"

// DraftLoaded is sent when the starting draft summary is ready.
type DraftLoaded struct {
	Summary string
	Err     error
}

// Replied is sent when the session has answered one command.
type Replied struct {
	Command  string
	Response edit.Response
}

// Aborted is sent when ctrl+c has rolled the session back.
type Aborted struct {
	Response edit.Response
}
