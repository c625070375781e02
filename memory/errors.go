package memory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound: no stored conversation matches an identifier.
	ErrNotFound = errors.New("conversation not found")
	// ErrAmbiguous: more than one stored conversation matches an identifier.
	ErrAmbiguous = errors.New("conversation identifier is ambiguous")
	// ErrMalformed: a conversation file does not follow the format.
	ErrMalformed = errors.New("malformed conversation")
	// ErrOutOfOrder: a message would break the You/Assistant alternation.
	ErrOutOfOrder = errors.New("message out of order")
	// ErrTitleFinalized: the conversation was already renamed after its title.
	ErrTitleFinalized = errors.New("conversation title already finalized")
	// ErrEmptyTitle: a generated title had no usable text.
	ErrEmptyTitle = errors.New("empty title")
)

// ResolveError reports a failed identifier lookup. Err is ErrNotFound or
// ErrAmbiguous.
type ResolveError struct {
	Identifier string
	Candidates []string
	Err        error
}

func (e *ResolveError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%v: %q matches %s", e.Err, e.Identifier, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Identifier)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// MalformedError names the marker that was missing or out of place.
type MalformedError struct {
	Path   string
	Line   int
	Marker string
}

func (e *MalformedError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("%v: %s: expected %q", ErrMalformed, loc, e.Marker)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// PersistError wraps a failed write, rename or read of a conversation file.
type PersistError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
