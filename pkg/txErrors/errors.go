// Package txErrors defines the error taxonomy shared by every stage of
// transaction construction, signing and submission.
//
// Callers match on the concrete types with errors.As, or use the Is*
// helpers:
//
//	var rejected *txErrors.BroadcastRejected
//	if errors.As(err, &rejected) { ... }
package txErrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// EncodingError reports malformed hex, base64, UTF-8 or integer input.
type EncodingError struct {
	Op    string
	Input string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding: %s %q: %v", e.Op, truncate(e.Input), e.Err)
	}
	return fmt.Sprintf("encoding: %s %q", e.Op, truncate(e.Input))
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ValidationError reports a precondition violated by the caller such as a
// missing signer or username, or a misused salt mode.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// UnsupportedCredentialError is returned when a signer produced a credential
// shape the consumer cannot interpret.
type UnsupportedCredentialError struct {
	Kind     string
	Expected string
}

func (e *UnsupportedCredentialError) Error() string {
	return fmt.Sprintf("unsupported credential: got %s, expected %s", e.Kind, e.Expected)
}

// BroadcastRejected carries the node's immediate non-zero response verbatim.
type BroadcastRejected struct {
	Hash      string
	Codespace string
	Code      uint32
	Log       string
}

func (e *BroadcastRejected) Error() string {
	return fmt.Sprintf("broadcast rejected: tx %s codespace=%q code=%d log=%q", e.Hash, e.Codespace, e.Code, e.Log)
}

// TxFailed means the transaction was executed and failed. Simulated is set
// when the failure was reported by a gas simulation rather than a block.
type TxFailed struct {
	Hash      string
	Height    int64
	Codespace string
	Code      uint32
	Log       string
	Simulated bool
}

func (e *TxFailed) Error() string {
	if e.Simulated {
		return fmt.Sprintf("tx simulation failed: %s", e.Log)
	}
	return fmt.Sprintf("tx %s failed at height %d: codespace=%q code=%d log=%q", e.Hash, e.Height, e.Codespace, e.Code, e.Log)
}

// ConfirmationTimeout means polling gave up without finding the transaction.
type ConfirmationTimeout struct {
	Hash     string
	Attempts int
}

func (e *ConfirmationTimeout) Error() string {
	return fmt.Sprintf("tx %s not found after %d attempts", e.Hash, e.Attempts)
}

// TransportError wraps network level failures so they can be told apart from
// application level rejections.
type TransportError struct {
	Transport string
	Method    string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %s: %v", e.Transport, e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewEncodingError(op, input string, err error) error {
	return &EncodingError{Op: op, Input: input, Err: err}
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NewTransportError(transport, method string, err error) error {
	return &TransportError{Transport: transport, Method: method, Err: err}
}

func IsEncodingError(err error) bool {
	var target *EncodingError
	return errors.As(err, &target)
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsUnsupportedCredential(err error) bool {
	var target *UnsupportedCredentialError
	return errors.As(err, &target)
}

func IsBroadcastRejected(err error) bool {
	var target *BroadcastRejected
	return errors.As(err, &target)
}

func IsTxFailed(err error) bool {
	var target *TxFailed
	return errors.As(err, &target)
}

func IsConfirmationTimeout(err error) bool {
	var target *ConfirmationTimeout
	return errors.As(err, &target)
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
