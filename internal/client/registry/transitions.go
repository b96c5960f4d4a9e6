package registry

import (
	"slices"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

// transitions lists the moves a caller may request through Transition.
// FAILED_NETWORK is handled separately: it returns to the processing
// status recorded in LastAction.
var transitions = map[models.Status][]models.Status{
	models.StatusDraft:           {models.StatusReadyToSubmit},
	models.StatusReadyToSubmit:   {models.StatusDraft, models.StatusSubmitting},
	models.StatusSubmitted:       {models.StatusReadyToRegister, models.StatusReadyToReject, models.StatusReadyToApprove},
	models.StatusValidated:       {models.StatusReadyToRegister, models.StatusReadyToReject},
	models.StatusApproved:        {models.StatusReadyToRegister, models.StatusReadyToReject},
	models.StatusReadyToRegister: {models.StatusRegistering},
	models.StatusReadyToReject:   {models.StatusRejecting},
	models.StatusReadyToApprove:  {models.StatusApproving},
	models.StatusReadyToCertify:  {models.StatusCertifying},
	models.StatusRegistered:      {models.StatusReadyToCertify},
	models.StatusRejected:        {models.StatusDraft, models.StatusReadyToSubmit},
	models.StatusSubmitting:      {models.StatusFailedNetwork, models.StatusFailed},
	models.StatusApproving:       {models.StatusFailedNetwork, models.StatusFailed},
	models.StatusRegistering:     {models.StatusFailedNetwork, models.StatusFailed},
	models.StatusCertifying:      {models.StatusFailedNetwork, models.StatusFailed},
	models.StatusRejecting:       {models.StatusFailedNetwork, models.StatusFailed},
	models.StatusFailed:          {models.StatusDraft},
}

// Local stages a declaration passes through before each server status.
// The server may skip steps the device never saw, so every earlier stage
// is accepted.
var (
	submitStages   = []models.Status{models.StatusSubmitting}
	validateStages = append(slices.Clone(submitStages), models.StatusSubmitted)
	approveStages  = append(slices.Clone(validateStages),
		models.StatusValidated, models.StatusReadyToApprove, models.StatusApproving)
	registerStages = append(slices.Clone(approveStages),
		models.StatusApproved, models.StatusReadyToRegister, models.StatusRegistering)
	certifyStages = append(slices.Clone(registerStages),
		models.StatusRegistered, models.StatusReadyToCertify, models.StatusCertifying)
	rejectStages = append(slices.Clone(registerStages),
		models.StatusReadyToReject, models.StatusRejecting)
)

// confirmable lists, per server-confirmed status, the local statuses it
// may replace. Failed declarations are looked up by their LastAction.
// Anything else is a stale snapshot and is ignored.
var confirmable = map[models.Status][]models.Status{
	models.StatusSubmitted:  submitStages,
	models.StatusValidated:  validateStages,
	models.StatusApproved:   approveStages,
	models.StatusRegistered: registerStages,
	models.StatusCertified:  certifyStages,
	models.StatusRejected:   rejectStages,
}

// CanTransition reports whether d may move to status to.
func CanTransition(d models.Declaration, to models.Status) bool {
	if d.Status == models.StatusFailedNetwork {
		return d.LastAction.IsProcessing() && to == d.LastAction
	}
	for _, next := range transitions[d.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// CanConfirm reports whether the server status to is a forward move for d.
func CanConfirm(d models.Declaration, to models.Status) bool {
	current := d.Status
	if current.IsFailure() {
		current = d.LastAction
	}
	return slices.Contains(confirmable[to], current)
}
