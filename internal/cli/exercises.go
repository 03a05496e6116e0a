package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/catalog"
	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/progress"
)

// ExercisesOptions holds flags for the exercises command.
type ExercisesOptions struct {
	*RootOptions
	Select string
}

// NewExercisesCommand creates the exercises command.
func NewExercisesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExercisesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exercises <bodypart> [query]",
		Short: "Browse the exercise catalog and select an exercise",
		Long: `List exercises for a body part, optionally narrowed by a search over name,
pattern, equipment and alternative group.

With --select the chosen exercise becomes current for "liftcoach save", set
numbering restarts when the exercise changes, and the last logged values for its
training slot are shown.

Example:
  liftcoach exercises Back pull
  liftcoach exercises Back --select EX0201`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			return browseExercises(cmd, opts, args[0], query)
		},
	}

	cmd.Flags().StringVar(&opts.Select, "select", "", "exercise id to make current")

	return cmd
}

func browseExercises(cmd *cobra.Command, opts *ExercisesOptions, bodypart, query string) error {
	if err := opts.requireRemote("exercises"); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := catalog.Fetch(ctx, a.client, bodypart)
	if err != nil {
		return err
	}

	if strings.TrimSpace(opts.Select) == "" {
		matches := catalog.Filter(items, query)
		return emit(cmd, opts.Format, matches, func(w io.Writer) error {
			if err := printf(w, "%d exercises\n", len(matches)); err != nil {
				return err
			}
			return catalog.Render(w, matches)
		})
	}

	ex, ok := catalog.Find(items, opts.Select)
	if !ok {
		return fmt.Errorf("exercise %q not found for body part %q", opts.Select, bodypart)
	}
	sess, err := a.sessions.Load(ctx)
	if err != nil {
		return err
	}
	sess.Select(ex)
	if err := a.sessions.Save(ctx, sess); err != nil {
		return err
	}

	prefill := a.progress.Prefill(ctx, ex)
	out := struct {
		Exercise domain.Exercise  `json:"exercise"`
		SetNo    int              `json:"set_no"`
		Prefill  progress.Prefill `json:"prefill"`
	}{ex, sess.SetNo, prefill}

	return emit(cmd, opts.Format, out, func(w io.Writer) error {
		if err := printf(w, "selected %s (%s), next set %d\n", ex.Name, ex.ProgressKey(), sess.SetNo); err != nil {
			return err
		}
		if !prefill.Found {
			return printf(w, "no previous sets\n")
		}
		return printf(w, "last: %gkg x %d @ RIR %g\n", prefill.Weight, prefill.Reps, prefill.RIR)
	})
}
