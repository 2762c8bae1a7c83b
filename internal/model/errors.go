package model

import "errors"

// Error taxonomy. Callers wrap these with context and classify with errors.Is.
var (
	// ErrIO marks an artifact that exists but could not be read or written
	ErrIO = errors.New("io error")

	// ErrParse marks malformed JSON or a schema mismatch
	ErrParse = errors.New("parse error")

	// ErrStructure marks a violated directory-nesting assumption
	ErrStructure = errors.New("structure error")

	// ErrUpstream marks a failing or unusable external collaborator
	ErrUpstream = errors.New("upstream error")

	// ErrNotFound marks an unknown record id
	ErrNotFound = errors.New("not found")
)
