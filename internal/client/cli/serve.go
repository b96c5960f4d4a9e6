package cli

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/httpapi"
)

const shutdownTimeout = 10 * time.Second

// Serve exposes the runtime over the local HTTP API on addr instead of the
// interactive shell. It runs the background workers and the connectivity
// watcher and returns once ctx is cancelled and the server drained.
func Serve(ctx context.Context, rt *Runtime, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := chi.NewRouter()
	httpapi.New(rt.Service, rt.Log.With("component", "httpapi"), rt.Metrics).Register(r)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app := NewApp(rt)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := rt.Start(ctx); err != nil {
			errs <- err
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		app.StartOnlineStatusWatcher(ctx, rt.Config.OnlineCheckInterval)
	}()
	go func() {
		defer wg.Done()
		rt.Log.Info(ctx, "local API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.Log.Warn(shutdownCtx, "local API shutdown", "error", err)
	}

	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	return errors.Join(all...)
}
