// Package catalog fetches, filters and renders the exercise list for a body part.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/remotelog"
)

// FetchLimit is the page size requested from get_exercises.
const FetchLimit = 200

// RenderLimit caps how many entries Render prints.
const RenderLimit = 30

// Lister is the part of the remote log client the catalog needs.
type Lister interface {
	GetExercises(ctx context.Context, filters remotelog.ExerciseFilters) ([]domain.Exercise, error)
}

// Fetch loads the first page of exercises for bodypart. Text search is done locally.
func Fetch(ctx context.Context, lister Lister, bodypart string) ([]domain.Exercise, error) {
	return lister.GetExercises(ctx, remotelog.ExerciseFilters{
		BodypartUI: bodypart,
		Query:      "",
		Limit:      FetchLimit,
		Offset:     0,
	})
}

// Filter keeps the exercises whose name, pattern, equipment or alternative group
// contains q, case-insensitively. A blank q keeps everything.
func Filter(items []domain.Exercise, q string) []domain.Exercise {
	query := strings.ToLower(strings.TrimSpace(q))
	if query == "" {
		return items
	}
	out := make([]domain.Exercise, 0, len(items))
	for _, ex := range items {
		haystack := strings.ToLower(strings.Join([]string{ex.Name, ex.Pattern, ex.EquipmentCat, ex.AltGroupKey}, " "))
		if strings.Contains(haystack, query) {
			out = append(out, ex)
		}
	}
	return out
}

// Find returns the exercise with the given id.
func Find(items []domain.Exercise, id string) (domain.Exercise, bool) {
	for _, ex := range items {
		if ex.ID == id {
			return ex, true
		}
	}
	return domain.Exercise{}, false
}

// Render writes one line per exercise, at most RenderLimit of them, followed by a
// note when more matched.
func Render(w io.Writer, items []domain.Exercise) error {
	for i, ex := range items {
		if i == RenderLimit {
			break
		}
		if _, err := fmt.Fprintf(w, "%-8s %s (%s / %s)\n", ex.ID, ex.Name, ex.EquipmentCat, ex.RangeType); err != nil {
			return err
		}
	}
	if len(items) > RenderLimit {
		_, err := fmt.Fprintf(w, "showing %d of %d; narrow the search to see the rest\n", RenderLimit, len(items))
		return err
	}
	return nil
}
