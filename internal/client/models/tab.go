package models

// RegStatus is a registration status as reported by the server.
type RegStatus string

const (
	RegInProgress RegStatus = "IN_PROGRESS"
	// RegIncomplete marks a notification sent by another system that
	// still needs its details completed.
	RegIncomplete RegStatus = "INCOMPLETE"
	RegDeclared   RegStatus = "DECLARED"
	RegValidated  RegStatus = "VALIDATED"
	RegApproved   RegStatus = "APPROVED"
	RegRegistered RegStatus = "REGISTERED"
	RegCertified  RegStatus = "CERTIFIED"
	RegRejected   RegStatus = "REJECTED"
)

func (s RegStatus) Valid() bool {
	switch s {
	case RegInProgress, RegIncomplete, RegDeclared, RegValidated, RegApproved, RegRegistered, RegCertified, RegRejected:
		return true
	}
	return false
}

// LocalStatus maps a server registration status onto the local lifecycle.
func (s RegStatus) LocalStatus() (Status, bool) {
	switch s {
	case RegDeclared:
		return StatusSubmitted, true
	case RegValidated:
		return StatusValidated, true
	case RegApproved:
		return StatusApproved, true
	case RegRegistered:
		return StatusRegistered, true
	case RegCertified:
		return StatusCertified, true
	case RegRejected:
		return StatusRejected, true
	}
	return "", false
}

// TabRow is one server search result.
type TabRow struct {
	ID            string    `json:"id"`
	CompositionID string    `json:"compositionId,omitempty"`
	Event         EventType `json:"event,omitempty"`
	Status        RegStatus `json:"registrationStatus,omitempty"`
	Name          string    `json:"name,omitempty"`
	ModifiedAt    string    `json:"modifiedAt,omitempty"`
}

// TabPage is a paginated server answer for one tab. A nil entry in Results
// stands for a null row in the response.
type TabPage struct {
	Results    []*TabRow `json:"results"`
	TotalItems int       `json:"totalItems"`
}

// TabQuery is the server-side filter for one tab fetch.
type TabQuery struct {
	LocationIDs []string    `json:"locationIds"`
	Statuses    []RegStatus `json:"status"`
	Skip        int         `json:"skip"`
	Count       int         `json:"count"`
}
