package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/services"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// QueueControl pauses outbound submissions while the server is unreachable.
type QueueControl interface {
	Suspend()
	Resume()
}

// SyncTrigger requests an immediate sync cycle.
type SyncTrigger interface {
	Trigger()
}

type App struct {
	svc     services.DeclarationService
	queue   QueueControl
	syncer  SyncTrigger
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer
	checkIv time.Duration

	mu   sync.Mutex
	Mode Mode
}

// NewApp builds the shell over a started runtime.
func NewApp(rt *Runtime) *App {
	return &App{
		svc:     rt.Service,
		queue:   rt.Queue,
		syncer:  rt.Reconciler,
		log:     rt.Log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		checkIv: rt.Config.OnlineCheckInterval,
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

// setMode records a connectivity change. Going offline suspends the queue;
// coming back resumes it and starts a sync right away.
func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	if a.Mode == mode {
		a.mu.Unlock()
		return
	}
	a.Mode = mode
	a.mu.Unlock()

	a.log.Info(ctx, "connectivity changed", "mode", mode)
	switch mode {
	case ModeOffline:
		a.queue.Suspend()
	case ModeOnline:
		a.queue.Resume()
		a.syncer.Trigger()
	}
}

func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
}

// checkOnline pings the server once and updates the mode.
func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.svc.Ping(pingCtx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
