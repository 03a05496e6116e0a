package domain

import (
	"strings"
	"time"
)

// Session holds the state a front end keeps between saves: who is training,
// which exercise is selected, and the next set number for it.
type Session struct {
	UserID    string    `json:"user_id"`
	WorkoutID string    `json:"workout_id"`
	Exercise  *Exercise `json:"exercise,omitempty"`
	SetNo     int       `json:"set_no"`
}

// NewSession constructs an empty session for the user and workout.
func NewSession(userID, workoutID string) *Session {
	return &Session{UserID: userID, WorkoutID: workoutID, SetNo: 1}
}

// Select makes ex the current exercise. Choosing a different exercise restarts set numbering.
func (s *Session) Select(ex Exercise) {
	if s.Exercise == nil || s.Exercise.ID != ex.ID {
		s.SetNo = 1
	}
	if s.SetNo < 1 {
		s.SetNo = 1
	}
	selected := ex
	s.Exercise = &selected
}

// Advance moves to the next set of the current exercise.
func (s *Session) Advance() {
	s.SetNo++
}

// NewRecord builds an immutable SetRecord for the current exercise and set number.
func (s *Session) NewRecord(in SetInput, now time.Time) (SetRecord, error) {
	if s.Exercise == nil || strings.TrimSpace(s.Exercise.ID) == "" {
		return SetRecord{}, &ValidationError{Field: "exercise", Reason: "must be selected"}
	}
	if err := in.Validate(); err != nil {
		return SetRecord{}, err
	}
	ex := s.Exercise
	if ex.TargetRepMin > 0 && ex.TargetRepMax > 0 && ex.TargetRepMin > ex.TargetRepMax {
		return SetRecord{}, &ValidationError{Field: "target_rep_range", Reason: "min must not exceed max"}
	}
	setNo := s.SetNo
	if setNo < 1 {
		setNo = 1
	}
	mode := in.Mode
	if mode == "" {
		mode = "Normal"
	}
	now = now.UTC()
	return SetRecord{
		SetID:        NewSetID(now),
		Timestamp:    now.Format(time.RFC3339Nano),
		UserID:       s.UserID,
		WorkoutID:    s.WorkoutID,
		BodypartUI:   ex.BodypartUI,
		Pattern:      ex.Pattern,
		RangeType:    ex.RangeType,
		EquipmentCat: ex.EquipmentCat,
		ExerciseID:   ex.ID,
		ExerciseName: ex.Name,
		Slot:         ex.Slot,
		TargetRepMin: ex.TargetRepMin,
		TargetRepMax: ex.TargetRepMax,
		SetNo:        setNo,
		Weight:       in.Weight,
		Reps:         in.Reps,
		RIR:          in.RIR,
		Mode:         mode,
		Notes:        in.Notes,
	}, nil
}
