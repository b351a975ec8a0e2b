package models

import (
	"errors"
	"fmt"
)

var (
	// ErrLoadFailure reports an unreachable or malformed feed.
	ErrLoadFailure = errors.New("load failure")
	// ErrWrongCredential reports that no private record could be decrypted with the passphrase.
	ErrWrongCredential = errors.New("wrong credential")
	// ErrInvalidCredential reports a failed username/password check.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRecordDecrypt reports a single undecodable private record.
	ErrRecordDecrypt = errors.New("record decrypt failure")
	// ErrInvalidRecord reports a creation-time invariant violation.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrNotFound reports a missing record or credential.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate reports an identifier or username collision.
	ErrDuplicate = errors.New("already exists")
	// ErrForbidden reports an operation the session is not allowed to perform.
	ErrForbidden = errors.New("forbidden")
)

// InvalidRecordError names the field that failed validation.
type InvalidRecordError struct {
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidRecord.
func (e *InvalidRecordError) Unwrap() error { return ErrInvalidRecord }

func invalid(field, reason string) error {
	return &InvalidRecordError{Field: field, Reason: reason}
}
