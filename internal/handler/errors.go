package handler

import "fmt"

// ReasonClass is the internal error taxonomy of spec §7: it drives both
// A-fail admission and the message surfaced to callers.
type ReasonClass int

const (
	ReasonPolicyDenied ReasonClass = iota
	ReasonNotFound
	ReasonDecodeError
	ReasonTransientNetwork
	ReasonInternal
)

func (r ReasonClass) String() string {
	switch r {
	case ReasonPolicyDenied:
		return "policy_denied"
	case ReasonNotFound:
		return "not_found"
	case ReasonDecodeError:
		return "decode_error"
	case ReasonTransientNetwork:
		return "transient_network"
	default:
		return "internal"
	}
}

// Cacheable reports whether spec §7 allows caching this class in A-fail.
// Only not_found and decode_error are durable failures; everything else is
// either a policy decision (not a property of the content) or retryable.
func (r ReasonClass) Cacheable() bool {
	return r == ReasonNotFound || r == ReasonDecodeError
}

// Message is the wire-level phrase spec §7 assigns to each class.
func (r ReasonClass) Message() string {
	switch r {
	case ReasonPolicyDenied:
		return "permission denied"
	case ReasonNotFound:
		return "not found"
	case ReasonDecodeError:
		return "cannot decode"
	case ReasonTransientNetwork:
		return "network failure"
	default:
		return "internal error"
	}
}

// Error is the one error shape handler.Begin ever returns, carrying enough
// for the transport layer to map it to an IPC-style error domain + message
// (spec §6: domain "com.canonical.Thumbnailer.Error.Failed").
type Error struct {
	Class ReasonClass
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
	return e.Class.Message()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(class ReasonClass, err error) *Error {
	return &Error{Class: class, Err: err}
}
