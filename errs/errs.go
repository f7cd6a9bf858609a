// Package errs classifies engine errors by origin: every
// error that reaches a command boundary should be attributable to the
// user, the local system, the database, the workspace metadata, the
// (out-of-scope) network layer, or an internal invariant violation.
//
// Grounded on garland/errors.go's flat var-block-of-sentinel-errors style,
// extended with the Origin classification garland's single-package
// library never needed.
package errs

import (
	"errors"
	"fmt"
)

// Origin classifies who is to blame for an error.
type Origin int

const (
	// Internal marks an invariant violation or unreachable code path.
	Internal Origin = iota
	User
	System
	Database
	Workspace
	Network
)

func (o Origin) String() string {
	switch o {
	case User:
		return "user"
	case System:
		return "system"
	case Database:
		return "database"
	case Workspace:
		return "workspace"
	case Network:
		return "network"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with an Origin classification.
type Error struct {
	Origin Origin
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Origin, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Origin, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(origin Origin, msg string) error {
	return &Error{Origin: origin, Msg: msg}
}

// Wrap attaches an Origin classification to an existing error.
func Wrap(origin Origin, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Origin: origin, Msg: msg, Err: err}
}

// OriginOf returns the Origin of err if it (or something it wraps) is an
// *Error, and Internal otherwise.
func OriginOf(err error) Origin {
	var e *Error
	if errors.As(err, &e) {
		return e.Origin
	}
	return Internal
}

// Is reports whether err (or a wrapped cause) carries the given origin.
func Is(err error, origin Origin) bool {
	return OriginOf(err) == origin
}

// Sentinel errors for conditions that recur across packages and that
// callers may want to match with errors.Is, mirroring garland/errors.go's
// sentinel-error idiom.
var (
	// ErrNotFound indicates a lookup (node, revision, cert...) failed.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create/attach would collide with an
	// existing entry.
	ErrAlreadyExists = errors.New("already exists")

	// ErrCorrupt indicates stored data failed an integrity check (hash
	// mismatch, malformed serialization).
	ErrCorrupt = errors.New("corrupt data")

	// ErrLocked indicates the workspace staging directory already exists.
	ErrLocked = errors.New("workspace is locked")
)
