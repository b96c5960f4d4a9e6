package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	New(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Set(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Action(ctx context.Context, action string, args []string) error
	Draft(ctx context.Context, args []string) error
	Discard(ctx context.Context, args []string) error
	Tabs(ctx context.Context, args []string) error
	Page(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Queue(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  new <birth|death>             create a draft
  edit <id>                     enter section.field=value lines
  set <id> section.field=value  set fields inline
  (l)ist                        list local declarations
  show <id>                     show one declaration
  submit|approve|register|reject|certify <id>
  retry <id>                    retry a failed or pending operation now
  draft <id>                    move a ready declaration back to draft
  discard <id>                  delete a draft
  tabs [tab]                    show the workqueue tabs
  page <tab> <skip>             page through a tab
  sync                          synchronize with the server
  queue                         show pending operations
  exit | quit`

// runREPL starts a simple read–eval–print loop for the registrar shell.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' with the remaining tokens as arguments.
// Unknown commands are reported back to the user. The loop exits on EOF
// or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("registrar %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "new":
			cmdErr = a.New(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "set":
			cmdErr = a.Set(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "submit", "approve", "register", "reject", "certify", "retry":
			cmdErr = a.Action(ctx, cmd, args)
		case "draft":
			cmdErr = a.Draft(ctx, args)
		case "discard":
			cmdErr = a.Discard(ctx, args)
		case "tabs":
			cmdErr = a.Tabs(ctx, args)
		case "page":
			cmdErr = a.Page(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)
		case "queue":
			cmdErr = a.Queue(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
