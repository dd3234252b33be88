// Package pgerr implements the error taxonomy of the core driver: a small
// set of structural error kinds that callers can classify with errors.Is/As
// instead of parsing message strings.
package pgerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error into one of the structural categories the core
// recognizes. It does not replace Go's error interface; every error below
// also implements error and wraps a cause where one exists.
type Kind int

const (
	// KindUnknown is never returned by this package; it is the zero value
	// returned by ClassifyOf when an error doesn't match any known kind.
	KindUnknown Kind = iota
	KindTransport
	KindProtocolViolation
	KindServer
	KindValueCodec
	KindTemporalDecode
	KindState
	KindUnsupportedEncoding
	KindAuthentication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindServer:
		return "ServerError"
	case KindValueCodec:
		return "ValueCodecError"
	case KindTemporalDecode:
		return "TemporalDecodeError"
	case KindState:
		return "StateError"
	case KindUnsupportedEncoding:
		return "UnsupportedEncoding"
	case KindAuthentication:
		return "AuthenticationError"
	default:
		return "Unknown"
	}
}

// classified is satisfied by every error type in this package.
type classified interface {
	error
	Kind() Kind
}

// TransportError wraps any I/O fault on the underlying byte transport. Per
// spec.md §4.1 and §7, a TransportError always means the connection that
// produced it is permanently poisoned.
type TransportError struct {
	Op    string
	cause error
}

func NewTransportError(op string, cause error) *TransportError {
	return &TransportError{Op: op, cause: cause}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pgwire: transport error during %s: %v", e.Op, e.cause)
}

func (e *TransportError) Unwrap() error { return e.cause }
func (e *TransportError) Kind() Kind    { return KindTransport }

// ProtocolViolation means the server sent an illegal message sequence or a
// malformed message. The connection transitions to Closed.
type ProtocolViolation struct {
	Reason string
	cause  error
}

func NewProtocolViolation(reason string, cause error) *ProtocolViolation {
	return &ProtocolViolation{Reason: reason, cause: cause}
}

func (e *ProtocolViolation) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("pgwire: protocol violation: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("pgwire: protocol violation: %s", e.Reason)
}

func (e *ProtocolViolation) Unwrap() error { return e.cause }
func (e *ProtocolViolation) Kind() Kind    { return KindProtocolViolation }

// ServerError is a decoded ErrorResponse message. It is recoverable at the
// statement level: the connection remains usable after the matching
// ReadyForQuery is consumed.
type ServerError struct {
	Severity      string
	SQLState      string
	Message       string
	Detail        string
	Hint          string
	Position      int32
	InternalQuery string
	InternalPos   int32
	Where         string
	Routine       string
	Raw           map[byte]string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pgwire: %s: %s (%s): %s", e.Severity, e.SQLState, e.Message, e.Detail)
	}
	return fmt.Sprintf("pgwire: %s: %s (%s)", e.Severity, e.SQLState, e.Message)
}

func (e *ServerError) Kind() Kind { return KindServer }

// Fatal reports whether the severity indicates the connection itself is
// being torn down by the server (FATAL/PANIC), as opposed to a recoverable
// statement-level error.
func (e *ServerError) Fatal() bool {
	return e.Severity == "FATAL" || e.Severity == "PANIC"
}

// ValueCodecError means a registered codec refused the bytes offered to it.
// The row carrying the value is surfaced as failed, but the connection
// itself is undamaged.
type ValueCodecError struct {
	OID    uint32
	Format string
	cause  error
}

func NewValueCodecError(oid uint32, format string, cause error) *ValueCodecError {
	return &ValueCodecError{OID: oid, Format: format, cause: cause}
}

func (e *ValueCodecError) Error() string {
	return fmt.Sprintf("pgwire: cannot decode oid %d (%s format): %v", e.OID, e.Format, e.cause)
}

func (e *ValueCodecError) Unwrap() error { return e.cause }
func (e *ValueCodecError) Kind() Kind    { return KindValueCodec }

// TemporalDecodeError is a specialization of ValueCodecError for temporal
// types: length mismatches or out-of-range wire values.
type TemporalDecodeError struct {
	TypeName string
	cause    error
}

func NewTemporalDecodeError(typeName string, cause error) *TemporalDecodeError {
	return &TemporalDecodeError{TypeName: typeName, cause: cause}
}

func (e *TemporalDecodeError) Error() string {
	return fmt.Sprintf("pgwire: cannot decode %s: %v", e.TypeName, e.cause)
}

func (e *TemporalDecodeError) Unwrap() error { return e.cause }
func (e *TemporalDecodeError) Kind() Kind    { return KindTemporalDecode }

// StateError (ObjectNotInState) means an API call was issued while the
// connection or a COPY session was in the wrong phase for it.
type StateError struct {
	Op    string
	State string
}

func NewStateError(op, state string) *StateError {
	return &StateError{Op: op, State: state}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("pgwire: %s is not valid in state %s", e.Op, e.State)
}

func (e *StateError) Kind() Kind { return KindState }

// UnsupportedEncoding means the server's client_encoding parameter did not
// normalize to UTF-8 during startup.
type UnsupportedEncoding struct {
	Encoding string
}

func NewUnsupportedEncoding(encoding string) *UnsupportedEncoding {
	return &UnsupportedEncoding{Encoding: encoding}
}

func (e *UnsupportedEncoding) Error() string {
	return fmt.Sprintf("pgwire: unsupported client_encoding %q (only UTF8 is supported)", e.Encoding)
}

func (e *UnsupportedEncoding) Kind() Kind { return KindUnsupportedEncoding }

// AuthenticationError covers unsupported or failed authentication
// mechanisms.
type AuthenticationError struct {
	Mechanism string
	cause     error
}

func NewAuthenticationError(mechanism string, cause error) *AuthenticationError {
	return &AuthenticationError{Mechanism: mechanism, cause: cause}
}

func (e *AuthenticationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("pgwire: authentication (%s) failed: %v", e.Mechanism, e.cause)
	}
	return fmt.Sprintf("pgwire: authentication mechanism %q is not supported", e.Mechanism)
}

func (e *AuthenticationError) Unwrap() error { return e.cause }
func (e *AuthenticationError) Kind() Kind    { return KindAuthentication }

// Wrap attaches op as context to err using cockroachdb/errors, preserving
// the original error's Kind() for classification by the caller.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "pgwire: %s", op)
}

// ClassifyOf reports the Kind of err, walking its Unwrap chain. It returns
// KindUnknown if no error in the chain implements the classified interface.
func ClassifyOf(err error) Kind {
	var c classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	return KindUnknown
}

// IsFatal reports whether err, per the core's propagation policy (§7),
// should poison the connection: transport faults and protocol violations
// are always fatal, and so is a ServerError with FATAL or PANIC severity;
// everything else is surfaced to the caller and the connection is drained
// to the next ReadyForQuery.
func IsFatal(err error) bool {
	switch ClassifyOf(err) {
	case KindTransport, KindProtocolViolation:
		return true
	case KindServer:
		var se *ServerError
		if errors.As(err, &se) {
			return se.Fatal()
		}
		return false
	default:
		return false
	}
}
