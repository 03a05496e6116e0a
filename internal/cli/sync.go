package cli

import (
	"io"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/outbox"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued sets to the remote log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncQueue(cmd, rootOpts)
		},
	}
}

func syncQueue(cmd *cobra.Command, opts *RootOptions) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.dispatcher.Flush(ctx)
	if err != nil {
		return err
	}
	pending := a.queue.Len(ctx)
	out := struct {
		outbox.FlushResult
		Pending int `json:"pending"`
	}{result, pending}

	return emit(cmd, opts.Format, out, func(w io.Writer) error {
		if result.Skipped {
			return printf(w, "sync skipped (%s); %d pending\n", result.SkipReason, pending)
		}
		return printf(w, "delivered %d of %d; %d pending\n", result.Delivered, result.Attempted, pending)
	})
}
