// Package tabs groups declarations into the workqueue tabs shown to a
// registrar and merges local declarations with server pages.
package tabs

import (
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

// Tab is a UI bucket of declarations grouped by lifecycle stage.
type Tab string

const (
	InProgress   Tab = "inProgress"
	Notification Tab = "notification"
	Review       Tab = "review"
	Approval     Tab = "approval"
	Reject       Tab = "reject"
	Print        Tab = "print"
)

// All lists the tabs in display order.
var All = []Tab{InProgress, Notification, Review, Approval, Reject, Print}

func (t Tab) Valid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}

// Mapping assigns local statuses to tabs.
type Mapping map[models.Status]Tab

// Table is the default status to tab mapping. Declarations sent from this
// device stay in progress until the server validates them. The
// notification tab only lists incomplete notifications from the server.
var Table = Mapping{
	models.StatusDraft:           InProgress,
	models.StatusReadyToSubmit:   InProgress,
	models.StatusSubmitting:      InProgress,
	models.StatusSubmitted:       InProgress,
	models.StatusValidated:       Review,
	models.StatusReadyToRegister: Review,
	models.StatusRegistering:     Review,
	models.StatusReadyToApprove:  Approval,
	models.StatusApproving:       Approval,
	models.StatusApproved:        Approval,
	models.StatusReadyToReject:   Reject,
	models.StatusRejecting:       Reject,
	models.StatusRejected:        Reject,
	models.StatusRegistered:      Print,
	models.StatusReadyToCertify:  Print,
	models.StatusCertifying:      Print,
	models.StatusCertified:       Print,
}

// TabOf returns the tab d belongs to. Failed declarations stay in the tab
// of the operation that failed.
func (m Mapping) TabOf(d models.Declaration) (Tab, bool) {
	s := d.Status
	if s.IsFailure() {
		s = d.LastAction
		if s == "" {
			s = models.StatusSubmitting
		}
	}
	t, ok := m[s]
	return t, ok
}

// ServerStatuses returns the registration statuses the server is asked
// for when fetching tab. Registrars holding the register scope also review
// validated declarations.
func ServerStatuses(tab Tab, canRegister bool) []models.RegStatus {
	switch tab {
	case InProgress:
		return []models.RegStatus{models.RegInProgress}
	case Notification:
		return []models.RegStatus{models.RegIncomplete}
	case Review:
		if canRegister {
			return []models.RegStatus{models.RegDeclared, models.RegValidated}
		}
		return []models.RegStatus{models.RegDeclared}
	case Approval:
		return []models.RegStatus{models.RegValidated}
	case Reject:
		return []models.RegStatus{models.RegRejected}
	case Print:
		return []models.RegStatus{models.RegRegistered}
	}
	return nil
}
