package ipc

import (
	"encoding/json"
	"fmt"
)

// Commands understood by the session owner.
const (
	CommandStatus  = "status"
	CommandSpeak   = "speak"
	CommandStop    = "stop"
	CommandCancel  = "cancel"
	CommandReset   = "reset"
	CommandSummary = "summary"
	CommandHistory = "history"
	CommandEnd     = "end"
)

type Request struct {
	Command string `json:"command"`
	Role    string `json:"role,omitempty"`
}

type Response struct {
	OK      bool            `json:"ok"`
	Phase   string          `json:"phase,omitempty"`
	Role    string          `json:"role,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// WithData attaches v as the JSON payload of r.
func (r Response) WithData(v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		r.OK = false
		r.Error = fmt.Sprintf("encode response data: %v", err)
		r.Kind = "internal"
		return r
	}
	r.Data = raw
	return r
}

// DecodeData unmarshals the response payload into v.
func (r Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}
