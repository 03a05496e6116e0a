// Package events defines payloads published to downstream consumers.
package events

import "time"

// SetLogAppendedType is the event_type header value for SetLogAppended.
const SetLogAppendedType = "set_log.appended"

// SetLogAppended is emitted once the remote log has confirmed a set.
type SetLogAppended struct {
	SetID       string    `json:"set_id"`
	UserID      string    `json:"user_id"`
	WorkoutID   string    `json:"workout_id"`
	ExerciseID  string    `json:"exercise_id"`
	ProgressKey string    `json:"progress_key"`
	SetNo       int       `json:"set_no"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	RIR         float64   `json:"rir"`
	RecordedAt  time.Time `json:"recorded_at"`
	DeliveredAt time.Time `json:"delivered_at"`
}
