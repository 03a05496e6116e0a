package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/progress"
)

// NewLastCommand creates the last command.
func NewLastCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "last [progress-key]",
		Short: "Show the most recent sets for a training slot",
		Long: `Show the most recent sets logged for a progress key
("bodypart|pattern|range_type|equipment_cat"). Without an argument the key of the
selected exercise is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.requireRemote("last"); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				sess, err := a.sessions.Load(ctx)
				if err != nil {
					return err
				}
				if sess.Exercise == nil {
					return errors.New("no exercise selected; pass a progress key or run exercises --select")
				}
				key = sess.Exercise.ProgressKey()
			}

			records, err := a.progress.LastEntries(ctx, key, limit)
			if err != nil {
				return err
			}
			return emit(cmd, rootOpts.Format, records, func(w io.Writer) error {
				if len(records) == 0 {
					return printf(w, "no sets for %s\n", key)
				}
				for _, rec := range records {
					if err := printf(w, "%s  %-24s set %d: %gkg x %d @ RIR %g\n", rec.Timestamp, rec.ExerciseName, rec.SetNo, rec.Weight, rec.Reps, rec.RIR); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", progress.DefaultLimit, "number of sets to show")

	return cmd
}
