package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/vizora/entitlements/internal/audit"
)

// Task type names
const (
	TypeAuditRecord = "audit:record"
)

// AuditRecordPayload carries one audit entry to the worker.
type AuditRecordPayload struct {
	ActorID    uuid.UUID       `json:"actor_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
}

func NewAuditRecordTask(e audit.Entry) (*asynq.Task, error) {
	payload := AuditRecordPayload{
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		payload.Details = raw
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAuditRecord, data), nil
}

// Entry rebuilds the audit entry on the worker side.
func (p AuditRecordPayload) Entry() audit.Entry {
	e := audit.Entry{
		ActorID:    p.ActorID,
		Action:     p.Action,
		TargetType: p.TargetType,
		TargetID:   p.TargetID,
		IPAddress:  p.IPAddress,
		UserAgent:  p.UserAgent,
	}
	if len(p.Details) > 0 {
		e.Details = p.Details
	}
	return e
}
