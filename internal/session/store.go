// Package session persists the front-end state between invocations: the selected
// exercise and the next set number.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/kvstore"
)

// Key addresses the stored session.
const Key = "liftcoach_session_v1"

// Store loads and saves the session for one user and workout.
type Store struct {
	kv        kvstore.Store
	userID    string
	workoutID string
}

// NewStore constructs a Store.
func NewStore(kv kvstore.Store, userID, workoutID string) *Store {
	return &Store{kv: kv, userID: userID, workoutID: workoutID}
}

// Load returns the stored session. A missing or unreadable record, or one saved for
// another user or workout, yields a fresh session.
func (s *Store) Load(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	fresh := domain.NewSession(s.userID, s.workoutID)
	if !ok {
		return fresh, nil
	}
	var stored domain.Session
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fresh, nil
	}
	if stored.UserID != s.userID || stored.WorkoutID != s.workoutID {
		return fresh, nil
	}
	if stored.SetNo < 1 {
		stored.SetNo = 1
	}
	return &stored, nil
}

// Save persists sess.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Put(ctx, Key, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
