package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
)

var errUsage = errors.New("wrong number of arguments, see 'help'")

func oneID(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	return args[0], nil
}

func (a *App) New(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	d, err := a.svc.Create(ctx, models.EventType(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s declaration %s\n", d.Event, d.ID)
	return nil
}

// Edit prompts for field assignments and saves them.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	lines, err := GetFieldLines(a.reader, a.out)
	if err != nil {
		return err
	}
	return a.save(ctx, id, lines)
}

// Set saves the field assignments given on the command line.
func (a *App) Set(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	return a.save(ctx, args[0], args[1:])
}

func (a *App) save(ctx context.Context, id string, assignments []string) error {
	d, err := a.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	d.Data, err = ParseFields(d.Data, assignments)
	if err != nil {
		return err
	}
	if _, err := a.svc.Save(ctx, d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s\n", id)
	return nil
}

func (a *App) List(ctx context.Context, _ []string) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEVENT\tSTATUS\tCOMPOSITION\tMODIFIED")
	for _, d := range a.svc.List(ctx) {
		status := string(d.Status)
		if d.Acknowledged {
			status += " (sent)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Event, status, d.CompositionID, d.ModifiedOn.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	d, err := a.svc.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID: %s\nEvent: %s\nStatus: %s\n", d.ID, d.Event, d.Status)
	if d.CompositionID != "" {
		fmt.Fprintf(a.out, "Composition: %s\n", d.CompositionID)
	}
	if d.LastAction != "" {
		fmt.Fprintf(a.out, "Last action: %s\n", d.LastAction)
	}
	for _, section := range slices.Sorted(maps.Keys(d.Data)) {
		for _, field := range slices.Sorted(maps.Keys(d.Data[section])) {
			fmt.Fprintf(a.out, "  %s.%s = %v\n", section, field, d.Data[section][field])
		}
	}
	return nil
}

// Action runs one of the lifecycle actions on a declaration.
func (a *App) Action(ctx context.Context, action string, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	var d models.Declaration
	switch action {
	case "submit":
		d, err = a.svc.Submit(ctx, id)
	case "approve":
		d, err = a.svc.Approve(ctx, id)
	case "register":
		d, err = a.svc.Register(ctx, id)
	case "reject":
		d, err = a.svc.Reject(ctx, id)
	case "certify":
		d, err = a.svc.Certify(ctx, id)
	case "retry":
		d, err = a.svc.Retry(ctx, id)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", d.ID, d.Status)
	return nil
}

func (a *App) Draft(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	d, err := a.svc.Transition(ctx, id, models.StatusDraft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", d.ID, d.Status)
	return nil
}

func (a *App) Discard(ctx context.Context, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	if err := a.svc.Discard(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Discarded %s\n", id)
	return nil
}

// Tabs prints the tab counts, or the rows of one tab.
func (a *App) Tabs(ctx context.Context, args []string) error {
	view := a.svc.Tabs(ctx)

	if len(args) == 0 {
		counts := view.Counts()
		parts := make([]string, 0, len(tabs.All))
		for _, t := range tabs.All {
			parts = append(parts, fmt.Sprintf("%s (%d)", t, counts[t]))
		}
		fmt.Fprintln(a.out, strings.Join(parts, "  "))
		return nil
	}

	tab := tabs.Tab(args[0])
	if !tab.Valid() {
		return fmt.Errorf("unknown tab %q", args[0])
	}
	m := view[tab]
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%d)\n", tab, m.TotalItems)
	for _, d := range m.Local {
		fmt.Fprintf(tw, "  %s\t%s\t%s\tlocal\n", d.ID, d.Event, d.Status)
	}
	for _, r := range m.Results {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.ID, r.Event, r.Status, r.Name)
	}
	return tw.Flush()
}

func (a *App) Page(_ context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	skip, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("skip must be a number: %w", err)
	}
	if err := a.svc.SetPage(tabs.Tab(args[0]), skip); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Page set; run 'sync' to fetch it")
	return nil
}

func (a *App) Sync(ctx context.Context, _ []string) error {
	if err := a.svc.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Synchronized")
	return nil
}

func (a *App) Queue(ctx context.Context, _ []string) error {
	ops := a.svc.Pending(ctx)
	if len(ops) == 0 {
		fmt.Fprintln(a.out, "No pending operations")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DECLARATION\tKIND\tATTEMPTS\tNEXT RETRY\tLAST ERROR")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", op.DeclarationID, op.Kind, op.Attempts, op.NextRetryAt.Format("15:04:05"), op.LastError)
	}
	return tw.Flush()
}
