// Package reconciler periodically pulls the server's view of every tab and
// folds it into the local registry.
//
// A cycle fetches all tabs concurrently. Each page is validated, server
// statuses that move a local declaration forward are adopted as one
// atomic batch per tab, and the page is kept as the tab's last reconciled
// query. A tab that fails keeps its previous page; the other tabs are not
// affected.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/metrics"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/registry"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
	"github.com/Sadman-Ilham/opencrvs-core/internal/timex"
)

// Fetcher runs a tab search on the server.
type Fetcher interface {
	FetchTab(ctx context.Context, query models.TabQuery) (*models.TabPage, error)
}

// Registry is the part of the declaration registry the reconciler drives.
type Registry interface {
	All() []models.Declaration
	Confirm(ctx context.Context, confirmations []registry.Confirmation) ([]models.Declaration, error)
	Prune(ctx context.Context, id string) error
}

type Config struct {
	LocationIDs []string
	PageSize    int
	Interval    time.Duration
	// CanRegister widens the review tab to validated declarations.
	CanRegister bool
	// PruneCertified removes CERTIFIED declarations from the device after
	// each cycle.
	PruneCertified bool
	// AdoptDeclared stores declared and validated server rows that are not
	// on this device yet.
	AdoptDeclared bool
}

type Reconciler struct {
	fetcher Fetcher
	reg     Registry
	cfg     Config

	// cycle serializes SyncOnce.
	cycle sync.Mutex

	mu    sync.RWMutex
	pages map[tabs.Tab]*models.TabPage
	skip  map[tabs.Tab]int

	trigger chan struct{}

	clock   timex.Clock
	log     logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Reconciler)

func WithClock(c timex.Clock) Option { return func(r *Reconciler) { r.clock = c } }

func WithLogger(l logging.Logger) Option { return func(r *Reconciler) { r.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Reconciler) { r.metrics = m } }

func New(fetcher Fetcher, reg Registry, cfg Config, opts ...Option) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = common.DefaultPageSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	r := &Reconciler{
		fetcher: fetcher,
		reg:     reg,
		cfg:     cfg,
		pages:   make(map[tabs.Tab]*models.TabPage),
		skip:    make(map[tabs.Tab]int),
		trigger: make(chan struct{}, 1),
		clock:   timex.SystemClock,
		log:     logging.Nop(),
		tracer:  otel.Tracer("github.com/Sadman-Ilham/opencrvs-core/internal/client/reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetSkip sets the pagination offset used for tab from the next cycle on.
func (r *Reconciler) SetSkip(tab tabs.Tab, skip int) error {
	if !tab.Valid() {
		return fmt.Errorf("unknown tab %q", tab)
	}
	if skip < 0 {
		return fmt.Errorf("negative skip %d", skip)
	}
	r.mu.Lock()
	r.skip[tab] = skip
	r.mu.Unlock()
	return nil
}

// LastPages returns the last reconciled page of every fetched tab.
func (r *Reconciler) LastPages() map[tabs.Tab]*models.TabPage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.pages)
}

// Trigger asks Run for an immediate cycle.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run reconciles every Interval, and on Trigger, until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn(ctx, "sync cycle incomplete", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.trigger:
		}
	}
}

type fetched struct {
	tab  tabs.Tab
	page *models.TabPage
	err  error
}

// SyncOnce runs one reconciliation cycle over all tabs. The returned error
// joins the failures of individual tabs; the successful tabs are applied
// regardless.
func (r *Reconciler) SyncOnce(ctx context.Context) error {
	r.cycle.Lock()
	defer r.cycle.Unlock()

	start := r.clock.Now()
	defer r.metrics.ObserveSync(start)

	ctx, span := r.tracer.Start(ctx, "reconciler.sync")
	defer span.End()

	results := make([]fetched, len(tabs.All))
	var g errgroup.Group
	for i, tab := range tabs.All {
		query := r.query(tab)
		g.Go(func() error {
			page, err := r.fetch(ctx, query)
			results[i] = fetched{tab: tab, page: page, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			return err
		}
		if err := r.apply(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("tab %s: %w", res.tab, err))
		}
	}

	if r.cfg.PruneCertified {
		if err := r.pruneCertified(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

func (r *Reconciler) query(tab tabs.Tab) models.TabQuery {
	r.mu.RLock()
	skip := r.skip[tab]
	r.mu.RUnlock()
	return models.TabQuery{
		LocationIDs: r.cfg.LocationIDs,
		Statuses:    tabs.ServerStatuses(tab, r.cfg.CanRegister),
		Skip:        skip,
		Count:       r.cfg.PageSize,
	}
}

func (r *Reconciler) fetch(ctx context.Context, query models.TabQuery) (*models.TabPage, error) {
	page, err := r.fetcher.FetchTab(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := Validate(page); err != nil {
		return nil, err
	}
	return page, nil
}

// apply adopts the confirmations carried by one fetched tab and records
// its page.
func (r *Reconciler) apply(ctx context.Context, res fetched) error {
	tab := string(res.tab)
	ctx, span := r.tracer.Start(ctx, "reconciler.tab", trace.WithAttributes(attribute.String("tab", tab)))
	defer span.End()

	if res.err != nil {
		outcome := "fetch_error"
		if errors.Is(res.err, common.ErrMalformedPage) {
			outcome = "malformed"
		}
		r.metrics.IncSyncTab(tab, outcome)
		r.log.Warn(ctx, "tab not reconciled, keeping previous page", "tab", tab, "error", res.err)
		span.RecordError(res.err)
		return res.err
	}

	confirmations, err := Confirmations(res.page, r.reg.All(), r.cfg.AdoptDeclared)
	if err != nil {
		r.metrics.IncSyncTab(tab, "malformed")
		r.log.Warn(ctx, "tab not reconciled, keeping previous page", "tab", tab, "error", err)
		span.RecordError(err)
		return err
	}
	adopted, err := r.reg.Confirm(ctx, confirmations)
	if err != nil {
		r.metrics.IncSyncTab(tab, "store_error")
		r.log.Error(ctx, "could not adopt server statuses", "tab", tab, "error", err)
		span.RecordError(err)
		return err
	}
	for _, d := range adopted {
		r.metrics.IncAdopted(string(d.Status))
	}

	r.mu.Lock()
	r.pages[res.tab] = res.page
	r.mu.Unlock()

	r.metrics.IncSyncTab(tab, "ok")
	r.log.Debug(ctx, "tab reconciled", "tab", tab, "rows", len(res.page.Results), "total", res.page.TotalItems, "adopted", len(adopted))
	return nil
}

func (r *Reconciler) pruneCertified(ctx context.Context) error {
	var errs []error
	for _, d := range r.reg.All() {
		if d.Status != models.StatusCertified {
			continue
		}
		if err := r.reg.Prune(ctx, d.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			errs = append(errs, fmt.Errorf("prune %s: %w", d.ID, err))
			continue
		}
		r.log.Info(ctx, "certified declaration pruned", "declaration_id", d.ID)
	}
	return errors.Join(errs...)
}

// Validate rejects pages that cannot be trusted: a negative total or a row
// id that appears twice. Null rows and rows without id are tolerated and
// filtered by the merge. Statuses are checked by Confirmations, only for
// rows that concern this device.
func Validate(page *models.TabPage) error {
	if page == nil {
		return fmt.Errorf("%w: empty response", common.ErrMalformedPage)
	}
	if page.TotalItems < 0 {
		return fmt.Errorf("%w: negative totalItems %d", common.ErrMalformedPage, page.TotalItems)
	}
	seen := make(map[string]struct{}, len(page.Results))
	for _, row := range page.Results {
		if row == nil || row.ID == "" {
			continue
		}
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("%w: duplicate row %s", common.ErrMalformedPage, row.ID)
		}
		seen[row.ID] = struct{}{}
	}
	return nil
}

// Confirmations lists the server statuses of page that concern local
// declarations. Whether a confirmation moves a declaration forward is
// decided by the registry. A local row with an unknown status makes the
// whole page malformed. With adoptDeclared, declared and validated rows
// unknown on this device are returned for adoption.
func Confirmations(page *models.TabPage, snapshot []models.Declaration, adoptDeclared bool) ([]registry.Confirmation, error) {
	local := make(map[string]struct{}, len(snapshot))
	for _, d := range snapshot {
		local[d.ID] = struct{}{}
	}

	var out []registry.Confirmation
	for _, row := range page.Results {
		if row == nil || row.ID == "" {
			continue
		}
		if _, ok := local[row.ID]; !ok {
			if adoptDeclared && adoptable(row) {
				status, _ := row.Status.LocalStatus()
				out = append(out, registry.Confirmation{
					ID:            row.ID,
					Status:        status,
					CompositionID: row.CompositionID,
					Event:         row.Event,
					Adopt:         true,
				})
			}
			continue
		}
		if row.Status != "" && !row.Status.Valid() {
			return nil, fmt.Errorf("%w: row %s has unknown status %q", common.ErrMalformedPage, row.ID, row.Status)
		}
		status, ok := row.Status.LocalStatus()
		if !ok {
			continue
		}
		out = append(out, registry.Confirmation{ID: row.ID, Status: status, CompositionID: row.CompositionID})
	}
	return out, nil
}

func adoptable(row *models.TabRow) bool {
	switch row.Status {
	case models.RegDeclared, models.RegValidated:
		return row.Event.Valid()
	}
	return false
}
