package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error so handlers can map it to an HTTP status
// without inspecting error strings.
type Kind int

const (
	// Validation means the input shape was bad.
	Validation Kind = iota + 1
	// NotFound means a referenced entity is absent.
	NotFound
	// Conflict means the entity is not in the expected state for the
	// requested transition (e.g. borrowing an already-borrowed book).
	Conflict
	// Dependency means a store or external API was unreachable or errored.
	Dependency
	// PartialState means a multi-step sequence failed midway and left
	// stores disagreeing. Manual reconciliation is required; operators
	// should alert on it.
	PartialState
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Dependency:
		return "dependency"
	case PartialState:
		return "partial_state"
	default:
		return "unknown"
	}
}

// Error carries a kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an error with a message but no underlying cause.
func E(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an error around an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf is Wrap with an additional message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of the outermost classified error in the wrap
// chain. Unclassified errors report 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err (or anything it wraps) carries kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}

// UserMessage returns text safe to show to a client. Dependency and
// partial-state details never leak; the caller gets a retry-later hint.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "something went wrong, please try again later"
	}
	switch e.Kind {
	case Validation, NotFound, Conflict:
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.String()
	default:
		return "something went wrong, please try again later"
	}
}
