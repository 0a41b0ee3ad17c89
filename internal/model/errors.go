package model

import "errors"

// Outcome errors. None of these stop a run; they tag dropped items,
// degraded classifications, overflowed groups and session outcomes so
// callers can match them with errors.Is.
var (
	ErrIngestRejected         = errors.New("ingest rejected")
	ErrClassificationDegraded = errors.New("classification degraded")
	ErrAmbiguousCommand       = errors.New("ambiguous command")
	ErrCapacityOverflow       = errors.New("capacity overflow")
	ErrSessionAborted         = errors.New("session aborted")
)

// Draft errors.
var (
	ErrUnknownGroup   = errors.New("unknown group")
	ErrUnknownSection = errors.New("unknown section")
	ErrAlreadyPlaced  = errors.New("group already placed")
)
