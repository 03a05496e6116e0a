package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var cableLateralRaise = Exercise{
	ID:           "EX0012",
	Name:         "Cable Lateral Raise",
	BodypartUI:   "Side Delts",
	Pattern:      "Lateral Raise",
	RangeType:    "Mid",
	EquipmentCat: "Cable",
	Slot:         "Sub",
	TargetRepMin: 8,
	TargetRepMax: 12,
}

func TestNewSetIDFormat(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	id := NewSetID(now)
	require.Regexp(t, regexp.MustCompile(`^S-1718000000123-[0-9a-f]{12}$`), id)
	require.NotEqual(t, id, NewSetID(now))
}

func TestProgressKeySharedAcrossExercisesWithSameShape(t *testing.T) {
	variant := cableLateralRaise
	variant.ID = "EX0099"
	variant.Name = "Single-arm Cable Raise"

	require.Equal(t, "Side Delts|Lateral Raise|Mid|Cable", cableLateralRaise.ProgressKey())
	require.Equal(t, cableLateralRaise.ProgressKey(), variant.ProgressKey())
}

func TestSetInputValidate(t *testing.T) {
	cases := []struct {
		name  string
		input SetInput
		field string
	}{
		{name: "zero weight", input: SetInput{Weight: 0, Reps: 10}, field: "weight"},
		{name: "zero reps", input: SetInput{Weight: 20, Reps: 0}, field: "reps"},
		{name: "negative rir", input: SetInput{Weight: 20, Reps: 8, RIR: -1}, field: "rir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate()
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}
	require.NoError(t, SetInput{Weight: 7.5, Reps: 12, RIR: 1}.Validate())
}

func TestSessionNumbering(t *testing.T) {
	session := NewSession("U001", "W-demo")
	session.Select(cableLateralRaise)
	require.Equal(t, 1, session.SetNo)

	session.Advance()
	session.Advance()
	session.Select(cableLateralRaise)
	require.Equal(t, 3, session.SetNo, "reselecting the same exercise keeps numbering")

	other := cableLateralRaise
	other.ID = "EX0020"
	session.Select(other)
	require.Equal(t, 1, session.SetNo)
}

func TestSessionNewRecord(t *testing.T) {
	session := NewSession("U001", "W-demo")

	_, err := session.NewRecord(SetInput{Weight: 7.5, Reps: 12}, time.Now())
	require.ErrorIs(t, err, ErrValidation)

	session.Select(cableLateralRaise)
	session.Advance()
	now := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)
	record, err := session.NewRecord(SetInput{Weight: 7.5, Reps: 12, RIR: 1}, now)
	require.NoError(t, err)
	require.Equal(t, 2, record.SetNo)
	require.Equal(t, "EX0012", record.ExerciseID)
	require.Equal(t, "Normal", record.Mode)
	require.Equal(t, now, record.RecordedAt())
	require.Equal(t, cableLateralRaise.ProgressKey(), record.ProgressKey())
	require.Equal(t, 2, session.SetNo, "building a record does not advance the session")
}

func TestActionBodyMergesActionName(t *testing.T) {
	action, err := NewAction(ActionGetLastByProgressKey, map[string]any{
		"query": map[string]any{"progress_key": "a|b|c|d", "limit": 5},
	})
	require.NoError(t, err)

	body, err := action.Body()
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"get_last_by_progress_key","query":{"progress_key":"a|b|c|d","limit":5}}`, string(body))

	ping, err := NewAction(ActionPing, nil)
	require.NoError(t, err)
	body, err = ping.Body()
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"ping"}`, string(body))

	_, err = NewAction(ActionPing, []int{1})
	require.Error(t, err)
}

func TestAppendSetLogRoundTripsRecord(t *testing.T) {
	record := SetRecord{SetID: "S-1-abc", ExerciseID: "EX0012", Weight: 7.5, Reps: 12, SetNo: 1}
	action, err := AppendSetLog(record)
	require.NoError(t, err)

	raw, err := json.Marshal(action)
	require.NoError(t, err)
	var decoded Action
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, ok := decoded.SetRecord()
	require.True(t, ok)
	require.Equal(t, record, got)

	ping, _ := NewAction(ActionPing, nil)
	_, ok = ping.SetRecord()
	require.False(t, ok)
}
