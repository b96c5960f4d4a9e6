package models

import "time"

// OperationKind is the remote call a queued operation performs.
type OperationKind string

const (
	KindCreate   OperationKind = "CREATE"
	KindUpdate   OperationKind = "UPDATE"
	KindReject   OperationKind = "REJECT"
	KindRegister OperationKind = "REGISTER"
	KindCertify  OperationKind = "CERTIFY"
	KindApprove  OperationKind = "APPROVE"
)

func (k OperationKind) Valid() bool {
	_, ok := k.ProcessingStatus()
	return ok
}

// ProcessingStatus returns the "…ING" status a declaration holds while an
// operation of kind k is pending.
func (k OperationKind) ProcessingStatus() (Status, bool) {
	switch k {
	case KindCreate, KindUpdate:
		return StatusSubmitting, true
	case KindReject:
		return StatusRejecting, true
	case KindRegister:
		return StatusRegistering, true
	case KindCertify:
		return StatusCertifying, true
	case KindApprove:
		return StatusApproving, true
	}
	return "", false
}

// KindFor returns the operation that drives a declaration into the
// processing status p. SUBMITTING maps to UPDATE once the server has
// assigned a composition id.
func KindFor(p Status, hasComposition bool) (OperationKind, bool) {
	switch p {
	case StatusSubmitting:
		if hasComposition {
			return KindUpdate, true
		}
		return KindCreate, true
	case StatusRejecting:
		return KindReject, true
	case StatusRegistering:
		return KindRegister, true
	case StatusCertifying:
		return KindCertify, true
	case StatusApproving:
		return KindApprove, true
	}
	return "", false
}

// QueuedOperation is a pending outbound call for one declaration.
type QueuedOperation struct {
	DeclarationID string        `json:"declarationId"`
	Kind          OperationKind `json:"kind"`
	Attempts      int           `json:"attempts"`
	NextRetryAt   time.Time     `json:"nextRetryAt"`
	EnqueuedAt    time.Time     `json:"enqueuedAt"`
	Seq           uint64        `json:"seq"`
	LastError     string        `json:"lastError,omitempty"`
}

// SubmissionPayload is the server-shaped body of an outbound call.
type SubmissionPayload struct {
	DeclarationID string    `json:"id"`
	CompositionID string    `json:"compositionId,omitempty"`
	Event         EventType `json:"event"`
	Data          Data      `json:"data"`
}

// PayloadFor builds the submission payload of d.
func PayloadFor(d Declaration) SubmissionPayload {
	return SubmissionPayload{
		DeclarationID: d.ID,
		CompositionID: d.CompositionID,
		Event:         d.Event,
		Data:          d.Data.Clone(),
	}
}

// SubmissionAck is the success envelope of an outbound call.
type SubmissionAck struct {
	CompositionID string    `json:"compositionId"`
	Status        RegStatus `json:"registrationStatus,omitempty"`
}
