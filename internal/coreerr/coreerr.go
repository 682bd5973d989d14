// Package coreerr is the error taxonomy every core boundary returns
// through: UserError, ConfigError, RemoteError, StateError, Fatal (per
// spec.md §7). Generalizes the teacher's blockchain.TxError/ParseTxError
// "raw reason -> translated message -> suggested action" shape from RPC
// send failures to the whole trading core, so every transport
// (cmd/cli, internal/restapi, internal/mcptools) can render one
// consistent class of error to a human without inspecting wrapped
// causes.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind tags which of the five taxonomy buckets an error belongs to.
type Kind string

const (
	KindUser   Kind = "user_error"   // bad input, policy block, expired/reused intent, ambiguous token
	KindConfig Kind = "config_error" // undecryptable wallet, corrupt salt, invalid provider URL
	KindRemote Kind = "remote_error" // aggregator/RPC/rugcheck failure after retries
	KindState  Kind = "state_error"  // ledger invariant violation
	KindFatal  Kind = "fatal"        // I/O on secret store fails to persist
)

// Error is a tagged, human-readable wrapper around a raw cause. Action
// is an optional suggested next step surfaced to the user.
type Error struct {
	Kind    Kind
	Message string
	Action  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (try: %s)", e.Kind, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a tagged Error with no suggested action.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf builds a tagged Error with a suggested action.
func Newf(kind Kind, message, action string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Action: action, Cause: cause}
}

func User(message string, cause error) *Error     { return New(KindUser, message, cause) }
func Config(message string, cause error) *Error   { return New(KindConfig, message, cause) }
func Remote(message string, cause error) *Error   { return New(KindRemote, message, cause) }
func State(message string, cause error) *Error    { return New(KindState, message, cause) }
func FatalErr(message string, cause error) *Error { return New(KindFatal, message, cause) }

// Is reports whether err is (or wraps) a coreerr.Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the taxonomy kind of err, or "" if err isn't tagged.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
