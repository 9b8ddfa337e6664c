// Package fault defines the error kinds reported to session observers.
package fault

import (
	"errors"
	"fmt"
)

// Kind tags an error with the subsystem that raised it.
type Kind string

const (
	// KindTransport covers open failures, timeouts and unexpected closes.
	KindTransport Kind = "transport"
	// KindProtocol covers malformed or unrecognized envelopes.
	KindProtocol Kind = "protocol"
	// KindGeometry covers invalid display extents.
	KindGeometry Kind = "geometry"
	// KindCalibration covers rejected calibration attempts.
	KindCalibration Kind = "calibration"
	// KindPeer covers application errors reported by the peer.
	KindPeer Kind = "peer"
)

// Error is a tagged error with a human-readable detail.
type Error struct {
	Kind     Kind
	Op       string
	Detail   string
	Terminal bool
	Err      error
}

// Error formats the fault as "kind: op: detail: cause".
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a fault without an underlying cause.
func New(kind Kind, op, detail string) error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Newf returns a fault with a formatted detail.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind and op. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Terminal marks a fault as ending the session.
func Terminal(err error) error {
	var f *Error
	if errors.As(err, &f) {
		cp := *f
		cp.Terminal = true
		return &cp
	}
	return &Error{Kind: KindTransport, Terminal: true, Err: err}
}

// KindOf returns the kind of the first fault in err's chain, or "" if none.
func KindOf(err error) Kind {
	var f *Error
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTerminal reports whether err ends the session.
func IsTerminal(err error) bool {
	var f *Error
	return errors.As(err, &f) && f.Terminal
}

// DetailOf returns the detail text of a fault, or err.Error() for untagged errors.
func DetailOf(err error) string {
	var f *Error
	if errors.As(err, &f) {
		if f.Detail != "" {
			return f.Detail
		}
		if f.Err != nil {
			return f.Err.Error()
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
