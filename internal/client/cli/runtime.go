package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/auth"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/client"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/config"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/metrics"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/queue"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/reconciler"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/registry"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/repositories/kv"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/services"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
)

// Runtime holds the wired client: storage, registry, queue, reconciler
// and the declaration service on top of them.
type Runtime struct {
	Config     *config.Config
	Log        logging.Logger
	Metrics    *prometheus.Registry
	Service    services.DeclarationService
	Queue      *queue.Queue
	Reconciler *reconciler.Reconciler

	db      *sql.DB
	gateway client.Gateway
}

// PassphraseFunc supplies the passphrase of an encrypted store.
type PassphraseFunc func() ([]byte, error)

// NewRuntime opens the database, loads the declarations, recovers the
// queue and connects the gateway lazily. passphrase is only called when
// cfg.Encrypt is set.
func NewRuntime(ctx context.Context, cfg *config.Config, logOut io.Writer, passphrase PassphraseFunc) (*Runtime, error) {
	log, err := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var store kv.Store = kv.NewSQLiteStore(db)
	if cfg.Encrypt {
		store, err = openSealed(ctx, store, passphrase)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	gw, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.AccessToken)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rt, err := newRuntime(ctx, cfg, log, store, gw)
	if err != nil {
		_ = gw.Close()
		_ = db.Close()
		return nil, err
	}
	rt.db = db
	return rt, nil
}

func openSealed(ctx context.Context, store kv.Store, passphrase PassphraseFunc) (kv.Store, error) {
	if passphrase == nil {
		return nil, errors.New("encrypted store needs a passphrase")
	}
	pw, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	defer common.WipeByteArray(pw)
	return kv.OpenSealed(ctx, store, pw)
}

// newRuntime wires the components over an opened store and gateway.
func newRuntime(ctx context.Context, cfg *config.Config, log logging.Logger, store kv.Store, gw client.Gateway) (*Runtime, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	reg := registry.New(store, registry.WithLogger(log.With("component", "registry")))
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("load declarations: %w", err)
	}

	q := queue.New(reg, gw, store, queue.Config{
		MaxAttempts:    cfg.MaxAttempts,
		RetryBackoff:   cfg.RetryBackoff,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	}, queue.WithLogger(log.With("component", "queue")), queue.WithMetrics(m))
	if err := q.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recover queue: %w", err)
	}

	rec := reconciler.New(gw, reg, reconciler.Config{
		LocationIDs:    cfg.LocationIDs,
		PageSize:       cfg.PageSize,
		Interval:       cfg.SyncInterval,
		CanRegister:    auth.CanRegister(cfg.AccessToken),
		PruneCertified: cfg.PruneCertified,
		AdoptDeclared:  cfg.AdoptDeclared,
	}, reconciler.WithLogger(log.With("component", "reconciler")), reconciler.WithMetrics(m))

	return &Runtime{
		Config:     cfg,
		Log:        log,
		Metrics:    promReg,
		Service:    services.NewDeclarationService(reg, q, rec, gw, log.With("component", "service")),
		Queue:      q,
		Reconciler: rec,
		gateway:    gw,
	}, nil
}

// Start runs the queue and the reconciler until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Queue.Run(ctx) })
	g.Go(func() error { return r.Reconciler.Run(ctx) })
	return g.Wait()
}

func (r *Runtime) Close() error {
	var errs []error
	if r.gateway != nil {
		errs = append(errs, r.gateway.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}
