package domain

import (
	"encoding/json"
	"fmt"
)

// Action names understood by the remote log.
const (
	ActionPing                 = "ping"
	ActionGetExercises         = "get_exercises"
	ActionGetLastByProgressKey = "get_last_by_progress_key"
	ActionAppendSetLog         = "append_set_log"
)

// Action is one remote call: its name plus the JSON object of fields sent alongside it.
// Params is nil or a JSON object such as {"data": {...}}.
type Action struct {
	Name   string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewAction encodes params into an Action. params must marshal to a JSON object or null.
func NewAction(name string, params any) (Action, error) {
	if params == nil {
		return Action{Name: name}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Action{}, fmt.Errorf("encode %s params: %w", name, err)
	}
	if string(raw) == "null" {
		return Action{Name: name}, nil
	}
	if len(raw) == 0 || raw[0] != '{' {
		return Action{}, fmt.Errorf("encode %s params: expected JSON object", name)
	}
	return Action{Name: name, Params: raw}, nil
}

// AppendSetLog wraps a set record in the append_set_log action.
func AppendSetLog(record SetRecord) (Action, error) {
	return NewAction(ActionAppendSetLog, struct {
		Data SetRecord `json:"data"`
	}{Data: record})
}

// Body renders the wire document: the params object with "action" merged in.
func (a Action) Body() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(a.Params) > 0 {
		if err := json.Unmarshal(a.Params, &fields); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", a.Name, err)
		}
	}
	name, err := json.Marshal(a.Name)
	if err != nil {
		return nil, err
	}
	fields["action"] = name
	return json.Marshal(fields)
}

// SetRecord extracts the record carried by an append_set_log action.
func (a Action) SetRecord() (SetRecord, bool) {
	if a.Name != ActionAppendSetLog || len(a.Params) == 0 {
		return SetRecord{}, false
	}
	var params struct {
		Data *SetRecord `json:"data"`
	}
	if err := json.Unmarshal(a.Params, &params); err != nil || params.Data == nil {
		return SetRecord{}, false
	}
	return *params.Data, true
}
