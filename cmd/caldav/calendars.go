package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beralt/caldav/davclient"
	"github.com/beralt/caldav/davurl"
)

var calendarName string

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List the calendars of the principal",
	Args:  cobra.NoArgs,
	RunE:  runCalendars,
}

var mkcalendarID string

var mkcalendarCmd = &cobra.Command{
	Use:   "mkcalendar [name]",
	Short: "Create a calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkcalendar,
}

func init() {
	mkcalendarCmd.Flags().StringVar(&mkcalendarID, "id", "", "URL segment of the new calendar (random when empty)")
	rootCmd.AddCommand(calendarsCmd, mkcalendarCmd)
}

func runCalendars(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	p, err := principal(ctx, cmd)
	if err != nil {
		return err
	}
	calendars, err := p.Calendars(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}
	if len(calendars) == 0 {
		cmd.Println("No calendars found.")
		return nil
	}
	for _, c := range calendars {
		name := c.Name()
		if name == "" {
			name = c.ID()
		}
		cmd.Printf("%s\t%s\n", name, c.URL())
	}
	return nil
}

func runMkcalendar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := principal(ctx, cmd)
	if err != nil {
		return err
	}
	c, err := p.MakeCalendar(ctx, args[0], mkcalendarID)
	if err != nil {
		return fmt.Errorf("failed to create calendar: %w", err)
	}
	cmd.Printf("Created %s\n", c.URL())
	return nil
}

// selectCalendar picks the calendar named by --calendar, matched against
// display name, id or URL. Without the flag the principal must own exactly
// one calendar.
func selectCalendar(ctx context.Context, cmd *cobra.Command) (*davclient.Calendar, error) {
	p, err := principal(ctx, cmd)
	if err != nil {
		return nil, err
	}
	calendars, err := p.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return pickCalendar(calendars, calendarName)
}

func pickCalendar(calendars []*davclient.Calendar, name string) (*davclient.Calendar, error) {
	if name == "" {
		switch len(calendars) {
		case 0:
			return nil, fmt.Errorf("no calendars found")
		case 1:
			return calendars[0], nil
		}
		names := make([]string, 0, len(calendars))
		for _, c := range calendars {
			names = append(names, c.Name())
		}
		return nil, fmt.Errorf("%d calendars found, choose one with --calendar: %s",
			len(calendars), strings.Join(names, ", "))
	}

	for _, c := range calendars {
		if c.Name() == name || c.ID() == name {
			return c, nil
		}
		if davurl.EqualString(name, c.URL().String()) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("calendar %q not found", name)
}
