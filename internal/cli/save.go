package cli

import (
	"io"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/domain"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Weight float64
	Reps   int
	RIR    float64
	Mode   string
	Notes  string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record a set for the selected exercise",
		Long: `Record a set for the exercise chosen with "liftcoach exercises --select".

The set is appended to the remote log right away when it is reachable. Otherwise it
is kept in the local queue and the command still succeeds.

Example:
  liftcoach save --weight 100 --reps 8 --rir 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveSet(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.Weight, "weight", 0, "load in kg")
	cmd.Flags().IntVar(&opts.Reps, "reps", 0, "repetitions performed")
	cmd.Flags().Float64Var(&opts.RIR, "rir", 0, "reps in reserve")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "set mode (default Normal)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")

	return cmd
}

func saveSet(cmd *cobra.Command, opts *SaveOptions) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.sessions.Load(ctx)
	if err != nil {
		return err
	}
	outcome, err := a.dispatcher.SaveSet(ctx, sess, domain.SetInput{
		Weight: opts.Weight,
		Reps:   opts.Reps,
		RIR:    opts.RIR,
		Mode:   opts.Mode,
		Notes:  opts.Notes,
	})
	if err != nil {
		return err
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		return err
	}

	pending := a.queue.Len(ctx)
	result := struct {
		Delivered bool             `json:"delivered"`
		Queued    bool             `json:"queued"`
		Reason    string           `json:"reason,omitempty"`
		Pending   int              `json:"pending"`
		Record    domain.SetRecord `json:"record"`
	}{outcome.Delivered, outcome.Queued, outcome.Reason, pending, outcome.Record}

	return emit(cmd, opts.Format, result, func(w io.Writer) error {
		rec := outcome.Record
		if outcome.Delivered {
			return printf(w, "saved set %d of %s: %gkg x %d @ RIR %g (%s)\n", rec.SetNo, rec.ExerciseName, rec.Weight, rec.Reps, rec.RIR, rec.SetID)
		}
		return printf(w, "queued set %d of %s (%s); %d pending\n", rec.SetNo, rec.ExerciseName, outcome.Reason, pending)
	})
}
