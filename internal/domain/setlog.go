// Package domain defines the workout-logging records exchanged with the remote log.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SetRecord is one logged exercise set. It is immutable once created.
type SetRecord struct {
	SetID        string  `json:"set_id"`
	Timestamp    string  `json:"timestamp"`
	UserID       string  `json:"user_id"`
	WorkoutID    string  `json:"workout_id"`
	BodypartUI   string  `json:"bodypart_ui"`
	Pattern      string  `json:"pattern"`
	RangeType    string  `json:"range_type"`
	EquipmentCat string  `json:"equipment_cat"`
	ExerciseID   string  `json:"exercise_id"`
	ExerciseName string  `json:"exercise_name"`
	Slot         string  `json:"slot"`
	TargetRepMin int     `json:"target_rep_min"`
	TargetRepMax int     `json:"target_rep_max"`
	SetNo        int     `json:"set_no"`
	Weight       float64 `json:"weight"`
	Reps         int     `json:"reps"`
	RIR          float64 `json:"rir"`
	Mode         string  `json:"mode"`
	Notes        string  `json:"notes"`
}

// ProgressKey returns the training slot the record belongs to.
func (r SetRecord) ProgressKey() string {
	return BuildProgressKey(r.BodypartUI, r.Pattern, r.RangeType, r.EquipmentCat)
}

// RecordedAt parses the creation timestamp. Zero is returned for malformed values.
func (r SetRecord) RecordedAt() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Exercise describes a catalog entry returned by get_exercises.
type Exercise struct {
	ID           string `json:"exercise_id"`
	Name         string `json:"exercise_name"`
	BodypartUI   string `json:"bodypart_ui"`
	Pattern      string `json:"pattern"`
	RangeType    string `json:"range_type"`
	EquipmentCat string `json:"equipment_cat"`
	AltGroupKey  string `json:"alt_group_key,omitempty"`
	Slot         string `json:"slot,omitempty"`
	TargetRepMin int    `json:"target_rep_min,omitempty"`
	TargetRepMax int    `json:"target_rep_max,omitempty"`
}

// ProgressKey returns the training slot shared by every exercise with the same shape.
// Distinct exercises that agree on all four attributes share prefill history.
func (e Exercise) ProgressKey() string {
	return BuildProgressKey(e.BodypartUI, e.Pattern, e.RangeType, e.EquipmentCat)
}

// BuildProgressKey joins the slot attributes into the key used by get_last_by_progress_key.
func BuildProgressKey(bodypart, pattern, rangeType, equipment string) string {
	return strings.Join([]string{
		strings.TrimSpace(bodypart),
		strings.TrimSpace(pattern),
		strings.TrimSpace(rangeType),
		strings.TrimSpace(equipment),
	}, "|")
}

// NewSetID generates a client-side set identifier of the form S-<unix ms>-<hex>.
func NewSetID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("S-%d-%s", now.UnixMilli(), suffix)
}

// ErrValidation marks user input rejected before any network attempt.
var ErrValidation = errors.New("validation failed")

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets callers match any validation failure with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SetInput is the user-entered part of a set.
type SetInput struct {
	Weight float64
	Reps   int
	RIR    float64
	Mode   string
	Notes  string
}

// Validate checks presence of the numeric payload.
func (in SetInput) Validate() error {
	if in.Weight <= 0 {
		return &ValidationError{Field: "weight", Reason: "must be > 0"}
	}
	if in.Reps <= 0 {
		return &ValidationError{Field: "reps", Reason: "must be > 0"}
	}
	if in.RIR < 0 {
		return &ValidationError{Field: "rir", Reason: "must be >= 0"}
	}
	return nil
}
