// Package cli implements the liftcoach command line.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "text" | "json" | "yaml"
	Offline bool
	APIURL  string
	Store   string
	DBPath  string
}

// ErrOffline is returned by commands that can only answer from the remote log when
// --offline is set.
var ErrOffline = errors.New("remote log is not contacted in offline mode")

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the liftcoach CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "liftcoach",
		Short: "Log workout sets to a remote sheet, online or not",
		Long: `liftcoach records exercise sets and appends them to a remote workout log.

Sets are sent immediately when the log is reachable and parked in a durable local
queue otherwise. The queue is replayed by "liftcoach sync" or continuously by
"liftcoach run".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "treat the remote log as unreachable: save queues, remote-only commands refuse to run")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "remote log endpoint (overrides LIFTCOACH_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "local store backend: sqlite|postgres|memory (overrides LIFTCOACH_STORE)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "sqlite database path (overrides LIFTCOACH_DB_PATH)")

	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewExercisesCommand(opts))
	cmd.AddCommand(NewLastCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// config returns the environment configuration with flag overrides applied.
func (o *RootOptions) config() config.Config {
	cfg := config.Load()
	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
	}
	if o.Store != "" {
		cfg.Store = o.Store
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	return cfg
}

// requireRemote refuses to run a remote-only command under --offline.
func (o *RootOptions) requireRemote(command string) error {
	if o.Offline {
		return fmt.Errorf("%s: %w", command, ErrOffline)
	}
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
