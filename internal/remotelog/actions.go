package remotelog

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/liftcoach/internal/domain"
)

// ExerciseFilters narrows get_exercises.
type ExerciseFilters struct {
	BodypartUI string `json:"bodypart_ui"`
	Query      string `json:"q"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// PingResult is the reply to ping.
type PingResult struct {
	ServerTime string `json:"ts"`
}

// Ping checks the endpoint end to end.
func (c *Client) Ping(ctx context.Context) (PingResult, error) {
	raw, err := c.Send(ctx, domain.ActionPing, nil)
	if err != nil {
		return PingResult{}, err
	}
	var out PingResult
	if err := decodeReply(domain.ActionPing, raw, &out); err != nil {
		return PingResult{}, err
	}
	return out, nil
}

// GetExercises lists catalog entries for a body part.
func (c *Client) GetExercises(ctx context.Context, filters ExerciseFilters) ([]domain.Exercise, error) {
	raw, err := c.Send(ctx, domain.ActionGetExercises, map[string]any{"filters": filters})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []domain.Exercise `json:"items"`
	}
	if err := decodeReply(domain.ActionGetExercises, raw, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// LastByProgressKey returns up to limit records for the slot, most recent first.
func (c *Client) LastByProgressKey(ctx context.Context, progressKey string, limit int) ([]domain.SetRecord, error) {
	raw, err := c.Send(ctx, domain.ActionGetLastByProgressKey, map[string]any{
		"query": map[string]any{"progress_key": progressKey, "limit": limit},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []domain.SetRecord `json:"items"`
	}
	if err := decodeReply(domain.ActionGetLastByProgressKey, raw, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// AppendSetLog delivers one set record.
func (c *Client) AppendSetLog(ctx context.Context, record domain.SetRecord) error {
	action, err := domain.AppendSetLog(record)
	if err != nil {
		return err
	}
	_, err = c.Do(ctx, action)
	return err
}

func decodeReply(action string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &DeliveryError{
			Action: action,
			Kind:   KindMalformed,
			Status: 200,
			Reason: fmt.Sprintf("unexpected %s reply: %v", action, err),
			Err:    err,
		}
	}
	return nil
}
