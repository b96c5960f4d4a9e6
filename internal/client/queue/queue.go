// Package queue drains outbound declaration operations against the remote
// service with at most one pending operation per declaration and bounded,
// capped-exponential retry.
//
// Pending operations are persisted under queue/<id> so attempt counts
// survive restarts. On startup Recover reloads them and rebuilds the
// operation of every declaration left in a processing status that the
// server has not acknowledged.
package queue

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/client"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/metrics"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/repositories/kv"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
	"github.com/Sadman-Ilham/opencrvs-core/internal/timex"
)

// Registry is the part of the declaration registry the queue drives.
type Registry interface {
	Get(id string) (models.Declaration, error)
	All() []models.Declaration
	Transition(ctx context.Context, id string, to models.Status) (models.Declaration, error)
	Acknowledge(ctx context.Context, id, compositionID string) (models.Declaration, error)
}

// Submitter performs the remote call of an operation.
type Submitter interface {
	Submit(ctx context.Context, kind models.OperationKind, payload models.SubmissionPayload) (*models.SubmissionAck, error)
}

type Config struct {
	MaxAttempts    int
	RetryBackoff   time.Duration
	RetryMaxDelay  time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the retry policy used when no configuration is
// supplied.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		RetryBackoff:   5 * time.Second,
		RetryMaxDelay:  5 * time.Minute,
		PollInterval:   time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// base doubled per attempt, capped at maxDelay.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 30 {
		return maxDelay
	}
	d := base << shift
	if d <= 0 || (maxDelay > 0 && d > maxDelay) {
		return maxDelay
	}
	return d
}

type Queue struct {
	mu        sync.Mutex
	ops       map[string]models.QueuedOperation
	seq       uint64
	suspended bool
	wake      chan struct{}

	// drain serializes processing passes.
	drain sync.Mutex

	reg     Registry
	gw      Submitter
	store   kv.Store
	cfg     Config
	clock   timex.Clock
	log     logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Queue)

func WithClock(c timex.Clock) Option { return func(q *Queue) { q.clock = c } }

func WithLogger(l logging.Logger) Option { return func(q *Queue) { q.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(q *Queue) { q.metrics = m } }

func New(reg Registry, gw Submitter, store kv.Store, cfg Config, opts ...Option) *Queue {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = def.RetryMaxDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	q := &Queue{
		ops:    make(map[string]models.QueuedOperation),
		wake:   make(chan struct{}, 1),
		reg:    reg,
		gw:     gw,
		store:  store,
		cfg:    cfg,
		clock:  timex.SystemClock,
		log:    logging.Nop(),
		tracer: otel.Tracer("github.com/Sadman-Ilham/opencrvs-core/internal/client/queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue creates the operation for id and moves the declaration into the
// matching processing status. It fails with common.ErrAlreadyQueued when
// an operation is already pending; the declaration is left untouched.
func (q *Queue) Enqueue(ctx context.Context, id string, kind models.OperationKind) error {
	processing, ok := kind.ProcessingStatus()
	if !ok {
		return fmt.Errorf("unknown operation kind %q", kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, pending := q.ops[id]; pending {
		return fmt.Errorf("enqueue %s %s: %w", kind, id, common.ErrAlreadyQueued)
	}

	d, err := q.reg.Get(id)
	if err != nil {
		return err
	}
	switch {
	case kind == models.KindCreate && d.CompositionID != "":
		return fmt.Errorf("create %s: already has composition %s: %w", id, d.CompositionID, common.ErrInvalidStateTransition)
	case kind == models.KindUpdate && d.CompositionID == "":
		return fmt.Errorf("update %s: no composition yet: %w", id, common.ErrInvalidStateTransition)
	}

	now := q.clock.Now()
	q.seq++
	op := models.QueuedOperation{
		DeclarationID: id,
		Kind:          kind,
		NextRetryAt:   now,
		EnqueuedAt:    now,
		Seq:           q.seq,
	}

	if err := q.persist(ctx, op); err != nil {
		return err
	}
	if _, err := q.reg.Transition(ctx, id, processing); err != nil {
		if rmErr := q.store.Remove(ctx, kv.QueueKey(id)); rmErr != nil {
			q.log.Error(ctx, "failed to roll back queued operation", "declaration_id", id, "error", rmErr)
		}
		return err
	}

	q.ops[id] = op
	q.metrics.SetQueueDepth(len(q.ops))
	q.log.Info(ctx, "operation queued", "declaration_id", id, "kind", kind)
	q.signal()
	return nil
}

// Expedite makes a pending operation due immediately. It reports whether
// an operation was pending.
func (q *Queue) Expedite(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, ok := q.ops[id]
	if !ok {
		return false, nil
	}
	op.NextRetryAt = q.clock.Now()
	if err := q.persist(ctx, op); err != nil {
		return true, err
	}
	q.ops[id] = op
	q.signal()
	return true, nil
}

// Cancel drops the pending operation of id, if any.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ops[id]; !ok {
		return nil
	}
	return q.dropLocked(ctx, id)
}

// Suspend stops processing until Resume. Pending operations are kept.
func (q *Queue) Suspend() {
	q.mu.Lock()
	q.suspended = true
	q.mu.Unlock()
}

func (q *Queue) Resume() {
	q.mu.Lock()
	q.suspended = false
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// Pending returns the pending operations ordered by due time.
func (q *Queue) Pending() []models.QueuedOperation {
	q.mu.Lock()
	out := make([]models.QueuedOperation, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, op)
	}
	q.mu.Unlock()
	sortOps(out)
	return out
}

// Recover loads the persisted operations and rebuilds missing ones for
// declarations left in a processing status without acknowledgement.
// Rebuilt operations start with zero attempts.
func (q *Queue) Recover(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys, err := q.store.Keys(ctx, kv.QueuePrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		raw, err := q.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if raw == nil {
			continue
		}
		var op models.QueuedOperation
		if err := json.Unmarshal(raw, &op); err != nil {
			q.log.Warn(ctx, "dropping unreadable queued operation", "key", key, "error", err)
			if err := q.store.Remove(ctx, key); err != nil {
				return err
			}
			continue
		}
		if !q.stillWanted(op) {
			if err := q.store.Remove(ctx, key); err != nil {
				return err
			}
			continue
		}
		q.ops[op.DeclarationID] = op
		q.seq = max(q.seq, op.Seq)
	}

	now := q.clock.Now()
	for _, d := range q.reg.All() {
		if !d.Status.IsProcessing() || d.Acknowledged {
			continue
		}
		if _, ok := q.ops[d.ID]; ok {
			continue
		}
		kind, _ := models.KindFor(d.Status, d.CompositionID != "")
		q.seq++
		op := models.QueuedOperation{
			DeclarationID: d.ID,
			Kind:          kind,
			NextRetryAt:   now,
			EnqueuedAt:    now,
			Seq:           q.seq,
		}
		if err := q.persist(ctx, op); err != nil {
			return err
		}
		q.ops[d.ID] = op
		q.log.Info(ctx, "recovered in-flight operation", "declaration_id", d.ID, "kind", kind)
	}

	q.metrics.SetQueueDepth(len(q.ops))
	return nil
}

// stillWanted reports whether the declaration of op still waits for it.
func (q *Queue) stillWanted(op models.QueuedOperation) bool {
	d, err := q.reg.Get(op.DeclarationID)
	if err != nil {
		return false
	}
	processing, ok := op.Kind.ProcessingStatus()
	if !ok || d.Acknowledged {
		return false
	}
	return d.Status == processing || (d.Status == models.StatusFailedNetwork && d.LastAction == processing)
}

// Run processes due operations until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := q.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			q.log.Error(ctx, "queue pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-q.wake:
		}
	}
}

// ProcessDue makes one pass over the operations that are due, in order of
// (NextRetryAt, Seq), and returns how many were attempted.
func (q *Queue) ProcessDue(ctx context.Context) (int, error) {
	q.drain.Lock()
	defer q.drain.Unlock()

	q.mu.Lock()
	if q.suspended {
		q.mu.Unlock()
		return 0, nil
	}
	now := q.clock.Now()
	var due []models.QueuedOperation
	for _, op := range q.ops {
		if !op.NextRetryAt.After(now) {
			due = append(due, op)
		}
	}
	q.mu.Unlock()
	sortOps(due)

	attempted := 0
	for _, op := range due {
		if err := ctx.Err(); err != nil {
			return attempted, err
		}
		if q.Suspended() {
			break
		}
		sent, err := q.process(ctx, op)
		if sent {
			attempted++
		}
		if err != nil {
			return attempted, err
		}
	}
	return attempted, nil
}

// process runs one operation. It reports whether a remote call was made.
func (q *Queue) process(ctx context.Context, op models.QueuedOperation) (bool, error) {
	id := op.DeclarationID
	processing, _ := op.Kind.ProcessingStatus()

	d, err := q.reg.Get(id)
	if errors.Is(err, common.ErrNotFound) {
		return false, q.drop(ctx, id, "declaration gone")
	}
	if err != nil {
		return false, err
	}

	switch {
	case d.Acknowledged && d.Status == processing:
		return false, q.drop(ctx, id, "already acknowledged")
	case d.Status == models.StatusFailedNetwork && d.LastAction == processing:
		d, err = q.reg.Transition(ctx, id, processing)
		if err != nil {
			return false, err
		}
	case d.Status != processing:
		return false, q.drop(ctx, id, "declaration moved on to "+string(d.Status))
	}

	ctx, span := q.tracer.Start(ctx, "queue.submit", trace.WithAttributes(
		attribute.String("declaration.id", id),
		attribute.String("operation.kind", string(op.Kind)),
		attribute.Int("operation.attempt", op.Attempts+1),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, q.cfg.RequestTimeout)
	ack, err := q.gw.Submit(callCtx, op.Kind, models.PayloadFor(d))
	cancel()

	if err == nil {
		composition := ""
		if ack != nil {
			composition = ack.CompositionID
		}
		if _, ackErr := q.reg.Acknowledge(ctx, id, composition); ackErr != nil {
			q.log.Warn(ctx, "could not record acknowledgement", "declaration_id", id, "error", ackErr)
		}
		q.metrics.IncSubmission(string(op.Kind), "success")
		q.log.Info(ctx, "operation accepted", "declaration_id", id, "kind", op.Kind, "composition_id", composition)
		return true, q.drop(ctx, id, "")
	}

	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())

	if ctx.Err() != nil {
		// shutting down; the attempt does not count
		return true, ctx.Err()
	}

	if client.IsPermanent(err) {
		q.metrics.IncSubmission(string(op.Kind), "permanent")
		q.log.Warn(ctx, "operation rejected", "declaration_id", id, "kind", op.Kind, "error", err)
		if err := q.drop(ctx, id, ""); err != nil {
			return true, err
		}
		return true, q.moveTo(ctx, id, models.StatusFailed)
	}

	return true, q.retryLater(ctx, op, err)
}

func (q *Queue) retryLater(ctx context.Context, op models.QueuedOperation, cause error) error {
	id := op.DeclarationID
	op.Attempts++
	op.LastError = cause.Error()

	if op.Attempts >= q.cfg.MaxAttempts {
		q.metrics.IncSubmission(string(op.Kind), "exhausted")
		q.log.Warn(ctx, "retries exhausted, manual retry required",
			"declaration_id", id, "kind", op.Kind, "attempts", op.Attempts, "error", cause)
		if err := q.drop(ctx, id, ""); err != nil {
			return err
		}
	} else {
		delay := Backoff(q.cfg.RetryBackoff, q.cfg.RetryMaxDelay, op.Attempts)
		op.NextRetryAt = q.clock.Now().Add(delay)
		// unclassified failures are retried like network ones
		outcome := "transient"
		if !client.IsTransient(cause) {
			outcome = "unclassified"
		}
		q.metrics.IncSubmission(string(op.Kind), outcome)
		q.log.Warn(ctx, "operation failed, will retry",
			"declaration_id", id, "kind", op.Kind, "attempts", op.Attempts, "retry_in", delay, "error", cause)

		q.mu.Lock()
		if _, still := q.ops[id]; !still {
			// cancelled while the call was in flight
			q.mu.Unlock()
			return nil
		}
		err := q.persist(ctx, op)
		if err == nil {
			q.ops[id] = op
		}
		q.mu.Unlock()
		if err != nil {
			return err
		}
	}

	return q.moveTo(ctx, id, models.StatusFailedNetwork)
}

// moveTo records the outcome of an operation. A declaration that changed
// while the call was in flight keeps its newer state.
func (q *Queue) moveTo(ctx context.Context, id string, to models.Status) error {
	_, err := q.reg.Transition(ctx, id, to)
	if errors.Is(err, common.ErrInvalidStateTransition) || errors.Is(err, common.ErrNotFound) {
		q.log.Warn(ctx, "declaration changed before the outcome was recorded", "declaration_id", id, "outcome", to, "error", err)
		return nil
	}
	return err
}

func (q *Queue) drop(ctx context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if reason != "" {
		q.log.Info(ctx, "dropping queued operation", "declaration_id", id, "reason", reason)
	}
	return q.dropLocked(ctx, id)
}

func (q *Queue) dropLocked(ctx context.Context, id string) error {
	if err := q.store.Remove(ctx, kv.QueueKey(id)); err != nil {
		return err
	}
	delete(q.ops, id)
	q.metrics.SetQueueDepth(len(q.ops))
	return nil
}

func (q *Queue) persist(ctx context.Context, op models.QueuedOperation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode queued operation: %w", err)
	}
	return q.store.Set(ctx, kv.QueueKey(op.DeclarationID), raw)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func sortOps(ops []models.QueuedOperation) {
	slices.SortFunc(ops, func(a, b models.QueuedOperation) int {
		if c := a.NextRetryAt.Compare(b.NextRetryAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
