// Package common defines shared constants, helpers and sentinel errors used
// across the registrar client. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Registry errors.
	ErrNotFound               = errors.New("declaration not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Queue errors.
	ErrAlreadyQueued = errors.New("operation already queued")

	// Remote failure classification.
	ErrTransientNetworkFailure = errors.New("transient network failure")
	ErrPermanentRejection      = errors.New("permanent rejection")

	// Persistence errors. Fatal for the current operation.
	ErrStorageFailure = errors.New("storage failure")

	// Sync errors.
	ErrMalformedPage = errors.New("malformed tab page")

	// ErrInvalidToken is returned when the access token cannot be decoded.
	ErrInvalidToken = errors.New("invalid token")
)
