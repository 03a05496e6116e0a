package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the remote log end to end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireRemote("ping"); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.client.Ping(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts.Format, result, func(w io.Writer) error {
				return printf(w, "ok: %s\n", result.ServerTime)
			})
		},
	}
}
