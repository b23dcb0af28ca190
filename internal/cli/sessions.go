package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
)

// ListConversations prints stored conversation ids with their size and last update.
func ListConversations(ctx context.Context, app *App, w io.Writer) error {
	ids, err := app.Sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing conversations: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No conversations found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMESSAGES\tTOOL CALLS\tUPDATED")
	for _, id := range ids {
		st, err := app.Sessions.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%v\n", id, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", id, len(st.History), len(st.ToolCalls), st.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// InspectConversation prints the stored record as indented JSON.
func InspectConversation(ctx context.Context, app *App, id string, w io.Writer) error {
	st, err := app.Sessions.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading conversation '%s': %w", id, err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling conversation: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// RemoveConversations deletes every id, reporting each outcome.
func RemoveConversations(ctx context.Context, app *App, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := app.Sessions.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed conversation '%s'\n", id)
	}
	return errors.Join(errs...)
}

// PrintTools lists the registered tools.
func PrintTools(app *App, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, spec := range app.Engine.Registry().Specs() {
		fmt.Fprintf(tw, "%s\t%s\n", spec.Name, spec.Description)
	}
	return tw.Flush()
}
