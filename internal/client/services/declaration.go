// Package services contains the application services of the registrar
// client. This file defines the declaration service used by the shell and
// the local HTTP API: declaration editing, lifecycle actions, manual retry,
// tab views and on-demand sync.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/projection"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
)

// DeclarationService defines the operations offered to the registrar.
//
// Contract:
//   - Create/Save/Get/List/Discard: local declaration management; never
//     touch the network.
//   - Transition: local-only moves (e.g. READY_TO_SUBMIT back to DRAFT).
//     Processing statuses are entered through the action methods only.
//   - Submit/Register/Reject/Certify/Approve: move the declaration to the
//     matching READY_* status and queue the outbound operation. If queueing
//     fails the declaration stays in READY_*; calling the same action again
//     queues it without another transition.
//   - Retry: re-run the failed or pending operation now.
//   - Tabs/SetPage/Sync: the merged per-tab view and its refresh.
//   - Pending: the queued operations.
//   - Ping: server liveness.
//
// Errors wrap the sentinels of package common.
type DeclarationService interface {
	Create(ctx context.Context, event models.EventType) (models.Declaration, error)
	Save(ctx context.Context, decl models.Declaration) (models.Declaration, error)
	Transition(ctx context.Context, id string, to models.Status) (models.Declaration, error)
	Get(ctx context.Context, id string) (models.Declaration, error)
	List(ctx context.Context) []models.Declaration
	Discard(ctx context.Context, id string) error

	Submit(ctx context.Context, id string) (models.Declaration, error)
	Register(ctx context.Context, id string) (models.Declaration, error)
	Reject(ctx context.Context, id string) (models.Declaration, error)
	Certify(ctx context.Context, id string) (models.Declaration, error)
	Approve(ctx context.Context, id string) (models.Declaration, error)
	Retry(ctx context.Context, id string) (models.Declaration, error)

	Tabs(ctx context.Context) projection.View
	SetPage(tab tabs.Tab, skip int) error
	Sync(ctx context.Context) error
	Pending(ctx context.Context) []models.QueuedOperation
	Ping(ctx context.Context) error
}

// Registry is the declaration store the service edits.
type Registry interface {
	Create(ctx context.Context, event models.EventType) (models.Declaration, error)
	Save(ctx context.Context, decl models.Declaration) (models.Declaration, error)
	Transition(ctx context.Context, id string, to models.Status) (models.Declaration, error)
	Get(id string) (models.Declaration, error)
	All() []models.Declaration
	Discard(ctx context.Context, id string) error
}

// Queue is the submission queue.
type Queue interface {
	Enqueue(ctx context.Context, id string, kind models.OperationKind) error
	Expedite(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id string) error
	Pending() []models.QueuedOperation
}

// Syncer is the sync reconciler.
type Syncer interface {
	SyncOnce(ctx context.Context) error
	LastPages() map[tabs.Tab]*models.TabPage
	SetSkip(tab tabs.Tab, skip int) error
}

// Pinger checks that the server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type declarationService struct {
	reg    Registry
	queue  Queue
	syncer Syncer
	pinger Pinger
	log    logging.Logger
}

// NewDeclarationService wires the registry, the queue and the reconciler
// into a DeclarationService. log may be nil.
func NewDeclarationService(reg Registry, queue Queue, syncer Syncer, pinger Pinger, log logging.Logger) DeclarationService {
	if log == nil {
		log = logging.Nop()
	}
	return &declarationService{reg: reg, queue: queue, syncer: syncer, pinger: pinger, log: log}
}

func (s *declarationService) Create(ctx context.Context, event models.EventType) (models.Declaration, error) {
	d, err := s.reg.Create(ctx, event)
	if err != nil {
		return models.Declaration{}, fmt.Errorf("create declaration: %w", err)
	}
	s.log.Info(ctx, "declaration created", "declaration_id", d.ID, "event", d.Event)
	return d, nil
}

func (s *declarationService) Save(ctx context.Context, decl models.Declaration) (models.Declaration, error) {
	return s.reg.Save(ctx, decl)
}

func (s *declarationService) Transition(ctx context.Context, id string, to models.Status) (models.Declaration, error) {
	if to.IsProcessing() {
		return models.Declaration{}, fmt.Errorf("%s is entered by queueing an operation: %w", to, common.ErrInvalidStateTransition)
	}
	return s.reg.Transition(ctx, id, to)
}

func (s *declarationService) Get(_ context.Context, id string) (models.Declaration, error) {
	return s.reg.Get(id)
}

func (s *declarationService) List(_ context.Context) []models.Declaration {
	return s.reg.All()
}

// Discard deletes a draft. A leftover queued operation is cancelled too.
func (s *declarationService) Discard(ctx context.Context, id string) error {
	if err := s.reg.Discard(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Cancel(ctx, id); err != nil {
		s.log.Warn(ctx, "could not cancel operation of discarded declaration", "declaration_id", id, "error", err)
	}
	s.log.Info(ctx, "declaration discarded", "declaration_id", id)
	return nil
}

// Submit sends a draft (or a rejected declaration being corrected) to the
// server: CREATE the first time, UPDATE once a composition exists.
func (s *declarationService) Submit(ctx context.Context, id string) (models.Declaration, error) {
	d, err := s.reg.Get(id)
	if err != nil {
		return models.Declaration{}, err
	}

	if d.Status == models.StatusFailed {
		if d, err = s.reg.Transition(ctx, id, models.StatusDraft); err != nil {
			return models.Declaration{}, err
		}
	}
	if d, err = s.ready(ctx, d, models.StatusReadyToSubmit); err != nil {
		return models.Declaration{}, err
	}

	kind, _ := models.KindFor(models.StatusSubmitting, d.CompositionID != "")
	return s.enqueue(ctx, id, kind)
}

func (s *declarationService) Register(ctx context.Context, id string) (models.Declaration, error) {
	return s.act(ctx, id, models.StatusReadyToRegister, models.KindRegister)
}

func (s *declarationService) Reject(ctx context.Context, id string) (models.Declaration, error) {
	return s.act(ctx, id, models.StatusReadyToReject, models.KindReject)
}

func (s *declarationService) Certify(ctx context.Context, id string) (models.Declaration, error) {
	return s.act(ctx, id, models.StatusReadyToCertify, models.KindCertify)
}

func (s *declarationService) Approve(ctx context.Context, id string) (models.Declaration, error) {
	return s.act(ctx, id, models.StatusReadyToApprove, models.KindApprove)
}

// Retry runs the operation of a declaration again. A pending operation is
// made due immediately; a declaration whose retries were exhausted gets a
// fresh operation of the kind that failed.
func (s *declarationService) Retry(ctx context.Context, id string) (models.Declaration, error) {
	d, err := s.reg.Get(id)
	if err != nil {
		return models.Declaration{}, err
	}
	if d.Status != models.StatusFailedNetwork && !d.Status.IsProcessing() {
		return models.Declaration{}, fmt.Errorf("retry %s in %s: %w", id, d.Status, common.ErrInvalidStateTransition)
	}

	pending, err := s.queue.Expedite(ctx, id)
	if err != nil {
		return models.Declaration{}, err
	}
	if pending {
		return s.reg.Get(id)
	}

	kind, ok := models.KindFor(d.LastAction, d.CompositionID != "")
	if !ok {
		return models.Declaration{}, fmt.Errorf("retry %s: no failed action recorded: %w", id, common.ErrInvalidStateTransition)
	}
	return s.enqueue(ctx, id, kind)
}

func (s *declarationService) Tabs(_ context.Context) projection.View {
	return projection.Project(s.reg.All(), s.syncer.LastPages())
}

func (s *declarationService) SetPage(tab tabs.Tab, skip int) error {
	return s.syncer.SetSkip(tab, skip)
}

func (s *declarationService) Sync(ctx context.Context) error {
	return s.syncer.SyncOnce(ctx)
}

func (s *declarationService) Pending(_ context.Context) []models.QueuedOperation {
	return s.queue.Pending()
}

func (s *declarationService) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return errors.New("no server configured")
	}
	return s.pinger.Ping(ctx)
}

// act moves id to the READY_* status of an action and queues it.
func (s *declarationService) act(ctx context.Context, id string, ready models.Status, kind models.OperationKind) (models.Declaration, error) {
	d, err := s.reg.Get(id)
	if err != nil {
		return models.Declaration{}, err
	}
	if _, err := s.ready(ctx, d, ready); err != nil {
		return models.Declaration{}, err
	}
	return s.enqueue(ctx, id, kind)
}

// ready moves d to the READY_* status unless it is already there.
func (s *declarationService) ready(ctx context.Context, d models.Declaration, ready models.Status) (models.Declaration, error) {
	if d.Status == ready {
		return d, nil
	}
	return s.reg.Transition(ctx, d.ID, ready)
}

func (s *declarationService) enqueue(ctx context.Context, id string, kind models.OperationKind) (models.Declaration, error) {
	if err := s.queue.Enqueue(ctx, id, kind); err != nil {
		return models.Declaration{}, fmt.Errorf("queue %s: %w", kind, err)
	}
	return s.reg.Get(id)
}
