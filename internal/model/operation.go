package model

import "time"

// OpKind names an edit operation.
type OpKind string

const (
	OpMove    OpKind = "move"
	OpRemove  OpKind = "remove"
	OpReorder OpKind = "reorder"
	OpMerge   OpKind = "merge"
	OpSplit   OpKind = "split" // inverse of merge
)

// Operation is one entry of a session's append-only edit log.
type Operation struct {
	ID      string    `json:"id"`
	Kind    OpKind    `json:"kind"`
	Targets []string  `json:"targets"`
	From    Section   `json:"from,omitempty"`
	To      Section   `json:"to,omitempty"`
	At      time.Time `json:"at"`

	// FromIndex and ToIndex are positions within the section for reorders.
	FromIndex int `json:"from_index,omitempty"`
	ToIndex   int `json:"to_index,omitempty"`

	// Merged is the id of the group created by a merge.
	Merged string `json:"merged,omitempty"`

	// Reverts is set on an undo entry to the id of the reverted operation.
	Reverts string `json:"reverts,omitempty"`

	// Command is the editor text that produced the operation.
	Command string `json:"command,omitempty"`
}

// Edition is a finalized draft handed to publishers when a session ends.
type Edition struct {
	ID          string
	SessionID   string
	FinalizedAt time.Time
	Draft       *Draft
	Ops         []Operation
}
