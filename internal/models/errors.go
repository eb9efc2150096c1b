package models

import "errors"

// Error taxonomy. Callers wrap these with %w so errors.Is works on both the kind and the cause.
var (
	// ErrSourceUnavailable means a collection's source location is missing or unreadable.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrIndexBuildFailure means a semantic index could not be built.
	ErrIndexBuildFailure = errors.New("index build failure")
	// ErrIndexLoadFailure means a persisted index exists but could not be loaded.
	ErrIndexLoadFailure = errors.New("index load failure")
	// ErrToolQueryFailure means a capability query failed mid-turn.
	ErrToolQueryFailure = errors.New("tool query failure")
	// ErrGenerationFailure means the language model failed or returned unusable output.
	ErrGenerationFailure = errors.New("generation failure")

	ErrTurnInProgress  = errors.New("turn already in progress")
	ErrSessionNotFound = errors.New("session not found")
)
