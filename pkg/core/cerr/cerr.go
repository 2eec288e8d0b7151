// Package cerr classifies the errors this module can return, following
// spec.md §7. Where the teacher repository pairs an error with an HTTP
// status code (because it fronts a REST API), this module has no HTTP
// surface, so Error instead pairs an error with a Kind drawn from
// spec.md's four error categories, plus a stable string Tag identifying
// the failing stage — the "BUG-class errors by a stable string tag"
// requirement from spec.md §7.
package cerr

import "fmt"

// Kind classifies an Error into one of the four categories spec.md §7
// distinguishes, so operators can observe their rates separately.
type Kind int

const (
	// KindProgrammer marks a precondition violated by the caller
	// (e.g. a zero iteration count, an undersized output buffer).
	// Never recovered; the surrounding session transitions to
	// Errored if one exists.
	KindProgrammer Kind = iota + 1

	// KindProtocol marks a malformed or non-conformant SASL exchange
	// (bad GS2 header, bad attribute list, nonce mismatch, ...). The
	// FSM transitions to Errored.
	KindProtocol

	// KindAuthFailure marks a StoredKey mismatch: the client proved
	// knowledge of the wrong password. The FSM transitions to Failed,
	// distinct from KindProtocol so operators can tell a wrong
	// password from a broken client.
	KindAuthFailure

	// KindTransient marks a crypto backend or allocation failure
	// that is not retried within the session.
	KindTransient
)

// String renders k for logging.
func (k Kind) String() string {
	switch k {
	case KindProgrammer:
		return "programmer"
	case KindProtocol:
		return "protocol"
	case KindAuthFailure:
		return "auth-failure"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error wraps an error with a Kind classification and a stable Tag
// identifying the stage that produced it (e.g. "scram.clientfirst.gs2",
// "digest.final.buffer"). Callers must never wrap a password, derived
// key, or verifier string into Err; only the stage identity and a
// non-secret description belong here.
type Error struct {
	Err  error
	Kind Kind
	Tag  string
}

// Unwrap returns the wrapped inner error.
func (e *Error) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Tag, e.Err.Error())
}

// Programmer wraps err as a KindProgrammer error tagged tag.
func Programmer(tag string, err error) *Error {
	return &Error{Err: err, Kind: KindProgrammer, Tag: tag}
}

// Protocol wraps err as a KindProtocol error tagged tag.
func Protocol(tag string, err error) *Error {
	return &Error{Err: err, Kind: KindProtocol, Tag: tag}
}

// AuthFailure wraps err as a KindAuthFailure error tagged tag.
func AuthFailure(tag string, err error) *Error {
	return &Error{Err: err, Kind: KindAuthFailure, Tag: tag}
}

// Transient wraps err as a KindTransient error tagged tag.
func Transient(tag string, err error) *Error {
	return &Error{Err: err, Kind: KindTransient, Tag: tag}
}
