package model

import "errors"

// Sentinel errors shared across the pipeline. Stage-local failures wrap
// these so callers can decide between degrading and failing closed.
var (
	// ErrExtractionFailed marks an LLM extraction failure: unreachable
	// provider, malformed reply, schema violation. The extractor absorbs
	// it and switches to the keyword path.
	ErrExtractionFailed = errors.New("claim extraction failed")

	// ErrKnowledgeLookup marks a knowledge base failure. Affected claims
	// are reported unverifiable; validation continues.
	ErrKnowledgeLookup = errors.New("knowledge base lookup failed")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition rejects backward case lifecycle moves.
	ErrInvalidTransition = errors.New("invalid case status transition")

	// ErrNoProvider is returned when LLM-backed paths run unconfigured.
	ErrNoProvider = errors.New("no LLM provider configured")
)
