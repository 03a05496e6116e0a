package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type pendingEntry struct {
	Action   string  `json:"action"`
	SetID    string  `json:"set_id,omitempty"`
	Exercise string  `json:"exercise_name,omitempty"`
	SetNo    int     `json:"set_no,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Reps     int     `json:"reps,omitempty"`
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List sets waiting in the local queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.queue.Load(ctx)
			out := make([]pendingEntry, 0, len(entries))
			for _, entry := range entries {
				view := pendingEntry{Action: entry.Name}
				if rec, ok := entry.SetRecord(); ok {
					view.SetID = rec.SetID
					view.Exercise = rec.ExerciseName
					view.SetNo = rec.SetNo
					view.Weight = rec.Weight
					view.Reps = rec.Reps
				}
				out = append(out, view)
			}

			return emit(cmd, rootOpts.Format, out, func(w io.Writer) error {
				if err := printf(w, "%d pending\n", len(out)); err != nil {
					return err
				}
				for _, e := range out {
					if e.SetID == "" {
						if err := printf(w, "  %s\n", e.Action); err != nil {
							return err
						}
						continue
					}
					if err := printf(w, "  %s  %s set %d: %gkg x %d\n", e.SetID, e.Exercise, e.SetNo, e.Weight, e.Reps); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
