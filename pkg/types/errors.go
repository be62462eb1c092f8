package types

import "errors"

var (
	// ErrServiceUnavailable means sunrise/sunset couldn't be resolved for a
	// day. Callers skip correction for that day.
	ErrServiceUnavailable = errors.New("sunrise/sunset service unavailable")

	// ErrAmbiguousTimestamp marks a wall clock that doesn't map to exactly one
	// instant. It is recovered inside the timezone normalizer.
	ErrAmbiguousTimestamp = errors.New("ambiguous or non-existent timestamp")

	// ErrMissingFile means no source files exist for an installation.
	ErrMissingFile = errors.New("missing source file")

	// ErrMalformedRecord aborts processing of the file it occurred in.
	ErrMalformedRecord = errors.New("malformed record")
)
