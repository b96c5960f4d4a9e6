package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/client"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/queue"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/reconciler"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/registry"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/repositories/kv"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

// fakeServer plays both sides of the remote service.
type fakeServer struct {
	mu        sync.Mutex
	submitted []models.OperationKind
	submitErr []error
	pages     map[models.RegStatus]*models.TabPage
	pingErr   error
}

func (s *fakeServer) Submit(_ context.Context, kind models.OperationKind, p models.SubmissionPayload) (*models.SubmissionAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, kind)
	if len(s.submitErr) > 0 {
		err := s.submitErr[0]
		s.submitErr = s.submitErr[1:]
		if err != nil {
			return nil, err
		}
	}
	comp := p.CompositionID
	if comp == "" {
		comp = "comp-" + p.DeclarationID
	}
	return &models.SubmissionAck{CompositionID: comp}, nil
}

func (s *fakeServer) FetchTab(_ context.Context, q models.TabQuery) (*models.TabPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[q.Statuses[0]]; ok {
		return p, nil
	}
	return &models.TabPage{}, nil
}

func (s *fakeServer) Ping(context.Context) error { return s.pingErr }

type fixture struct {
	svc DeclarationService
	reg *registry.Registry
	q   *queue.Queue
	srv *fakeServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	seq := 0
	f := &fixture{srv: &fakeServer{pages: map[models.RegStatus]*models.TabPage{}}}
	f.reg = registry.New(store, registry.WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("decl-%d", seq)
	}))
	f.q = queue.New(f.reg, f.srv, store, queue.Config{MaxAttempts: 2, RetryBackoff: time.Hour})
	rec := reconciler.New(f.srv, f.reg, reconciler.Config{})
	f.svc = NewDeclarationService(f.reg, f.q, rec, f.srv, nil)
	return f
}

// failingQueue refuses the first n Enqueue calls.
type failingQueue struct {
	*queue.Queue
	n int
}

func (q *failingQueue) Enqueue(ctx context.Context, id string, kind models.OperationKind) error {
	if q.n > 0 {
		q.n--
		return fmt.Errorf("persist operation: %w", common.ErrStorageFailure)
	}
	return q.Queue.Enqueue(ctx, id, kind)
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	_, err := f.q.ProcessDue(context.Background())
	require.NoError(t, err)
}

func (f *fixture) serverSays(id string, s models.RegStatus) {
	f.srv.mu.Lock()
	defer f.srv.mu.Unlock()
	f.srv.pages[s] = &models.TabPage{Results: []*models.TabRow{{ID: id, CompositionID: "comp-" + id, Status: s}}, TotalItems: 1}
}

func TestActions_RepeatAfterQueueFailureResumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fq := &failingQueue{Queue: f.q, n: 2}
	svc := NewDeclarationService(f.reg, fq, reconciler.New(f.srv, f.reg, reconciler.Config{}), f.srv, nil)

	d, err := svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, d.ID)
	require.ErrorIs(t, err, common.ErrStorageFailure)
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyToSubmit, got.Status)
	assert.Empty(t, svc.Pending(ctx))

	got, err = svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitting, got.Status)
	f.drain(t)

	f.serverSays(d.ID, models.RegDeclared)
	require.NoError(t, svc.Sync(ctx))

	_, err = svc.Register(ctx, d.ID)
	require.ErrorIs(t, err, common.ErrStorageFailure)
	got, err = svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReadyToRegister, got.Status)

	got, err = svc.Register(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistering, got.Status)
	pending := svc.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, models.KindRegister, pending[0].Kind)
}

func TestSubmit_DraftQueuesCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	d.Data = models.Data{"child": {"firstNames": "Ada"}}
	_, err = f.svc.Save(ctx, d)
	require.NoError(t, err)

	got, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitting, got.Status)

	pending := f.svc.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, models.KindCreate, pending[0].Kind)

	_, err = f.svc.Submit(ctx, d.ID)
	require.ErrorIs(t, err, common.ErrInvalidStateTransition)
}

func TestLifecycle_SubmitConfirmRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Create(ctx, models.EventDeath)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	f.drain(t)

	f.serverSays(d.ID, models.RegDeclared)
	require.NoError(t, f.svc.Sync(ctx))
	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.True(t, f.svc.Tabs(ctx).Contains(tabs.InProgress, d.ID))

	got, err = f.svc.Register(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistering, got.Status)
	f.drain(t)

	f.serverSays(d.ID, models.RegRegistered)
	require.NoError(t, f.svc.Sync(ctx))
	view := f.svc.Tabs(ctx)
	assert.True(t, view.Contains(tabs.Print, d.ID))
	assert.False(t, view.Contains(tabs.Review, d.ID))

	f.srv.mu.Lock()
	assert.Equal(t, []models.OperationKind{models.KindCreate, models.KindRegister}, f.srv.submitted)
	f.srv.mu.Unlock()
}

func TestSubmit_RejectedDeclarationQueuesUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	f.drain(t)
	f.serverSays(d.ID, models.RegDeclared)
	require.NoError(t, f.svc.Sync(ctx))

	_, err = f.svc.Reject(ctx, d.ID)
	require.NoError(t, err)
	f.drain(t)
	f.serverSays(d.ID, models.RegRejected)
	require.NoError(t, f.svc.Sync(ctx))

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, got.Status)

	_, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	pending := f.svc.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, models.KindUpdate, pending[0].Kind)
}

func TestTransition_RefusesProcessingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, d.ID, models.StatusReadyToSubmit)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, d.ID, models.StatusSubmitting)
	require.ErrorIs(t, err, common.ErrInvalidStateTransition)

	got, err := f.svc.Transition(ctx, d.ID, models.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	sent, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, sent.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, draft.ID))
	_, err = f.svc.Get(ctx, draft.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, f.svc.Discard(ctx, sent.ID), common.ErrInvalidStateTransition)
	assert.Len(t, f.svc.Pending(ctx), 1)
	assert.Len(t, f.svc.List(ctx), 1)
}

func TestRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.submitErr = []error{
		&client.RemoteError{StatusCode: 503},
		&client.RemoteError{StatusCode: 503},
	}
	d, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)

	_, err = f.svc.Retry(ctx, d.ID)
	require.ErrorIs(t, err, common.ErrInvalidStateTransition, "nothing to retry for a draft")

	_, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	f.drain(t)

	// still pending: the retry is only brought forward
	got, err := f.svc.Retry(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailedNetwork, got.Status)
	f.drain(t)

	// MaxAttempts reached: the operation is gone
	assert.Empty(t, f.svc.Pending(ctx))
	got, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailedNetwork, got.Status)

	got, err = f.svc.Retry(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitting, got.Status)
	pending := f.svc.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)

	f.drain(t)
	got, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Acknowledged)
}

func TestSubmit_AfterPermanentRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.submitErr = []error{&client.RemoteError{StatusCode: 400, Body: "invalid"}}
	d, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	f.drain(t)

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, got.Status)

	got, err = f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitting, got.Status)
}

func TestTabs_CountsLocalAndRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := make([]*models.TabRow, 5)
	for i := range rows {
		rows[i] = &models.TabRow{ID: fmt.Sprintf("remote-%d", i), Status: models.RegInProgress}
	}
	f.srv.pages[models.RegInProgress] = &models.TabPage{Results: rows, TotalItems: 5}

	_, err := f.svc.Create(ctx, models.EventBirth)
	require.NoError(t, err)
	require.NoError(t, f.svc.Sync(ctx))

	assert.Equal(t, 6, f.svc.Tabs(ctx).Counts()[tabs.InProgress])

	require.NoError(t, f.svc.SetPage(tabs.InProgress, 10))
	require.Error(t, f.svc.SetPage("archive", 0))
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Ping(context.Background()))

	f.srv.pingErr = client.ErrUnavailable
	require.ErrorIs(t, f.svc.Ping(context.Background()), client.ErrUnavailable)
}
