package main

import (
	"fmt"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/beralt/caldav/davclient"
)

var (
	eventsFrom   string
	eventsTo     string
	eventsVerify bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events of a calendar",
	Long: `Lists the events of a calendar. With --from and/or --to the server is
asked for the events overlapping that window; dates are RFC 3339 timestamps
or plain YYYY-MM-DD days in UTC.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var getCmd = &cobra.Command{
	Use:   "get [uid]",
	Short: "Print the event with the given UID",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var putCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Store an iCalendar file in a calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [url]",
	Short: "Delete a calendar object or collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	for _, c := range []*cobra.Command{eventsCmd, getCmd, putCmd} {
		c.Flags().StringVar(&calendarName, "calendar", "", "calendar name, id or URL")
	}
	eventsCmd.Flags().StringVar(&eventsFrom, "from", "", "start of the search window")
	eventsCmd.Flags().StringVar(&eventsTo, "to", "", "end of the search window")
	eventsCmd.Flags().BoolVar(&eventsVerify, "verify", false, "re-check server results locally")
	rootCmd.AddCommand(eventsCmd, getCmd, putCmd, deleteCmd)
}

// parseTime accepts RFC 3339 or a bare date. Empty input is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func runEvents(cmd *cobra.Command, _ []string) error {
	from, err := parseTime(eventsFrom)
	if err != nil {
		return err
	}
	to, err := parseTime(eventsTo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cal, err := selectCalendar(ctx, cmd)
	if err != nil {
		return err
	}

	var events []*davclient.Event
	if from.IsZero() && to.IsZero() {
		events, err = cal.Events(ctx)
	} else {
		var opts []davclient.DateSearchOption
		if eventsVerify {
			opts = append(opts, davclient.WithVerify())
		}
		events, err = cal.DateSearch(ctx, from, to, opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		cmd.Println("No events found.")
		return nil
	}
	for _, ev := range events {
		cmd.Println(describe(ev))
	}
	return nil
}

// describe formats an event as "start  summary  (uid)".
func describe(obj *davclient.Event) string {
	inst, err := obj.Instance()
	if err != nil {
		return fmt.Sprintf("%s (unreadable: %v)", obj.URL(), err)
	}
	uid, _ := inst.UID()
	ev, err := inst.Event()
	if err != nil {
		return fmt.Sprintf("%s (%s)", obj.URL(), uid)
	}
	summary, _ := ev.Props.Text(ical.PropSummary)
	start, _, err := inst.Span()
	if err != nil {
		return fmt.Sprintf("%-20s  %s  (%s)", "?", summary, uid)
	}
	return fmt.Sprintf("%-20s  %s  (%s)", start.UTC().Format(time.RFC3339), summary, uid)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cal, err := selectCalendar(ctx, cmd)
	if err != nil {
		return err
	}
	ev, err := cal.Event(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := ev.Data()
	if err != nil {
		return err
	}
	cmd.Print(string(data))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cal, err := selectCalendar(ctx, cmd)
	if err != nil {
		return err
	}
	ev, err := davclient.NewEvent(cal.Client(), davclient.ObjectOptions{Data: data, Parent: cal})
	if err != nil {
		return err
	}
	// Parse before sending so malformed files fail locally.
	if _, err := ev.Instance(); err != nil {
		return err
	}
	if err := ev.Save(ctx); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	cmd.Printf("Stored %s\n", ev.URL())
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := principal(ctx, cmd)
	if err != nil {
		return err
	}
	obj, err := davclient.NewDAVObject(p.Client(), args[0])
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	cmd.Printf("Deleted %s\n", obj.URL())
	return nil
}
