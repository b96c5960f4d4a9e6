// Package cli provides the interactive registrar shell and the wiring of
// the client runtime.
//
// NewRuntime opens the local store, loads the declarations, recovers the
// submission queue and connects the gateway. The shell (App.Root) starts a
// background connectivity watcher that suspends the queue while offline
// and triggers a sync when the server comes back, then runs the REPL until
// the user exits.
//
// Commands cover the declaration lifecycle:
//   - new / edit / set / show / list / discard / draft
//   - submit / approve / register / reject / certify / retry
//   - tabs / page / sync / queue
package cli
