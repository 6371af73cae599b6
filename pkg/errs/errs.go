// Package errs defines the typed error kinds shared across ripd's packages,
// per spec.md §7.
package errs

import "fmt"

// Kind identifies the broad category of an error for mapping onto HTTP
// response kinds, CLI exit codes, and metrics counters.
type Kind string

const (
	KindConfigValidation Kind = "config_validation"
	KindConfigIO         Kind = "config_io"
	KindConfigWatch      Kind = "config_watch"

	KindWireShort      Kind = "wire_short"
	KindWireBadCmd     Kind = "wire_bad_command"
	KindWireBadVersion Kind = "wire_bad_version"
	KindWireBadAF      Kind = "wire_bad_address_family"
	KindWireBadMetric  Kind = "wire_bad_metric"
	KindWireTooManyRTE Kind = "wire_too_many_rte"

	KindNetBind       Kind = "net_bind"
	KindNetSend       Kind = "net_send"
	KindNetRecv       Kind = "net_recv"
	KindNetMulticast  Kind = "net_multicast_join"

	KindRibNotFound  Kind = "rib_not_found"
	KindRibNotMutable Kind = "rib_not_mutable"

	KindInternalChannelClosed Kind = "internal_channel_closed"
)

// Error is the common error type for all ripd packages. It carries a Kind
// so callers can branch on category without string-matching messages.
type Error struct {
	K       Kind
	Message string
	Cause   error
}

func New(k Kind, message string) *Error {
	return &Error{K: k, Message: message}
}

func Wrap(k Kind, message string, cause error) *Error {
	return &Error{K: k, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind returns the error's category. Named Kind() rather than a plain field
// getter so errors.As callers and switch-on-kind callers read the same way.
func (e *Error) Kind() Kind { return e.K }

// ExitCode maps a Kind onto the CLI exit codes spec.md §6 defines:
// 0 success, 1 generic, 2 config, 3 network, 4 permission, 5 resource.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !asError(err, &e) {
		return 1
	}
	switch e.K {
	case KindConfigValidation, KindConfigIO, KindConfigWatch:
		return 2
	case KindNetBind, KindNetSend, KindNetRecv, KindNetMulticast:
		return 3
	case KindRibNotFound, KindRibNotMutable:
		return 5
	default:
		return 1
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
