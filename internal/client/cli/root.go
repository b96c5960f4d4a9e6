package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	if m := a.mode(); m != "" {
		return fmt.Sprintf("(%s)", m)
	}
	return ""
}

// Root starts the connectivity watcher and blocks in the REPL until the
// user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to the registrar shell (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.checkIv)

	runREPL(ctx, a, a.getStatus, a.reader)
}
