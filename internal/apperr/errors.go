// Package apperr defines the error taxonomy shared by the triage packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNoSnapshot     = errors.New("no parsed data found, run 'build' or 'parse' first")
	ErrNoCapture      = errors.New("no captured build output found, run 'build' first")
	ErrNoActionable   = errors.New("no actionable errors")
	ErrMalformedInput = errors.New("malformed input")
	ErrIndexDisabled  = errors.New("search index disabled, set index.path in the config")
)

// OutOfRangeError reports a positional lookup outside the record collection.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	if e.Len == 0 {
		return fmt.Sprintf("invalid index %d: snapshot has no entries", e.Index)
	}
	return fmt.Sprintf("invalid index %d, valid range: 0..%d", e.Index, e.Len-1)
}

// Is lets errors.Is(err, ErrNotFound) match range failures.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrNotFound
}

// MalformedError describes a structurally broken diagnostic block.
type MalformedError struct {
	Block  int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("block %d: malformed %s %q: %s", e.Block, e.Field, e.Value, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedInput
}
