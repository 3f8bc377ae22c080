// Command caldav is a small command line front end to the davclient package.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beralt/caldav/davclient"
)

var version = "dev"

var (
	configPath string
	serverURL  string
	username   string
	password   string
	debug      bool
	discover   bool
)

var rootCmd = &cobra.Command{
	Use:   "caldav",
	Short: "Work with calendars on a CalDAV server",
	Long: `caldav lists calendars and reads, writes and deletes calendar objects
on a CalDAV server. Settings come from a YAML or TOML config file and may be
overridden with flags.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	flags.StringVar(&serverURL, "url", "", "server, principal or calendar URL")
	flags.StringVarP(&username, "user", "u", "", "username for basic auth")
	flags.StringVarP(&password, "password", "p", "", "password for basic auth")
	flags.BoolVar(&debug, "debug", false, "log every request to stderr")
	flags.BoolVar(&discover, "discover", false, "locate the principal through DNS and well-known URLs")
}

// loadConfig merges the config file, if any, with the command line flags.
func loadConfig() (*davclient.Config, error) {
	cfg := davclient.DefaultConfig()
	if configPath != "" {
		loaded, err := davclient.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if serverURL != "" {
		cfg.URL = serverURL
	}
	if username != "" {
		cfg.Username = username
	}
	if password != "" {
		cfg.Password = password
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	cfg.Normalize()
	if cfg.URL == "" {
		return nil, errors.New("no server URL: set --url or url in the config file")
	}
	return cfg, nil
}

// principal connects to the configured server and returns the user's
// principal.
func principal(ctx context.Context, cmd *cobra.Command) (*davclient.Principal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}

	if discover {
		return davclient.Discover(ctx, cfg.URL, opts, nil)
	}
	client, err := davclient.NewDAVClient(cfg.URL, opts)
	if err != nil {
		return nil, err
	}
	return client.Principal(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
