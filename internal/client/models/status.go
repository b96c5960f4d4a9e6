package models

// Status is the local lifecycle state of a declaration.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusReadyToSubmit   Status = "READY_TO_SUBMIT"
	StatusSubmitting      Status = "SUBMITTING"
	StatusSubmitted       Status = "SUBMITTED"
	StatusValidated       Status = "VALIDATED"
	StatusReadyToApprove  Status = "READY_TO_APPROVE"
	StatusApproving       Status = "APPROVING"
	StatusApproved        Status = "APPROVED"
	StatusReadyToRegister Status = "READY_TO_REGISTER"
	StatusRegistering     Status = "REGISTERING"
	StatusRegistered      Status = "REGISTERED"
	StatusReadyToCertify  Status = "READY_TO_CERTIFY"
	StatusCertifying      Status = "CERTIFYING"
	StatusCertified       Status = "CERTIFIED"
	StatusReadyToReject   Status = "READY_TO_REJECT"
	StatusRejecting       Status = "REJECTING"
	StatusRejected        Status = "REJECTED"
	StatusFailed          Status = "FAILED"
	StatusFailedNetwork   Status = "FAILED_NETWORK"
)

// AllStatuses lists every lifecycle state in graph order.
var AllStatuses = []Status{
	StatusDraft, StatusReadyToSubmit, StatusSubmitting, StatusSubmitted,
	StatusValidated, StatusReadyToApprove, StatusApproving, StatusApproved,
	StatusReadyToRegister, StatusRegistering, StatusRegistered,
	StatusReadyToCertify, StatusCertifying, StatusCertified,
	StatusReadyToReject, StatusRejecting, StatusRejected,
	StatusFailed, StatusFailedNetwork,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsProcessing reports whether s is one of the "…ING" states, i.e. an
// outbound operation for the declaration is queued or in flight.
func (s Status) IsProcessing() bool {
	switch s {
	case StatusSubmitting, StatusApproving, StatusRegistering, StatusCertifying, StatusRejecting:
		return true
	}
	return false
}

// IsServerConfirmed reports whether s can only be reached through a
// confirmation coming from the server.
func (s Status) IsServerConfirmed() bool {
	switch s {
	case StatusSubmitted, StatusValidated, StatusApproved, StatusRegistered, StatusCertified, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether s is a server-confirmed terminal outcome.
func (s Status) IsTerminal() bool {
	return s == StatusRegistered || s == StatusCertified || s == StatusRejected
}

// IsFailure reports whether s is one of the recoverable error states.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusFailedNetwork
}

// Editable reports whether field data may be saved while in s.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected || s == StatusFailedNetwork
}

func (s Status) String() string { return string(s) }
