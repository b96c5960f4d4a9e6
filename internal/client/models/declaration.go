package models

import (
	"time"
)

// EventType is the kind of vital event a declaration records.
type EventType string

const (
	EventBirth EventType = "birth"
	EventDeath EventType = "death"
)

func (e EventType) Valid() bool {
	return e == EventBirth || e == EventDeath
}

// Data holds form field values keyed by section then field name.
type Data map[string]map[string]any

// Clone returns a deep copy of d. Nested maps and slices are copied so the
// result shares no mutable state with d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for section, fields := range d {
		if fields == nil {
			out[section] = nil
			continue
		}
		copied := make(map[string]any, len(fields))
		for name, v := range fields {
			copied[name] = cloneValue(v)
		}
		out[section] = copied
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), value...)
	default:
		return v
	}
}

// Declaration is a birth or death registration tracked on the device.
//
// Values are replaced wholesale on every change; the registry hands out
// deep copies so callers never alias its state.
type Declaration struct {
	ID            string    `json:"id"`
	CompositionID string    `json:"compositionId,omitempty"`
	Event         EventType `json:"event"`
	Data          Data      `json:"data"`
	Status        Status    `json:"submissionStatus"`
	// LastAction is the processing status of the most recent outbound
	// operation. It decides what a failed declaration retries.
	LastAction Status `json:"lastAction,omitempty"`
	// Acknowledged is set once the server accepted the current operation
	// and cleared when a new one starts.
	Acknowledged bool      `json:"acknowledged,omitempty"`
	ModifiedOn   time.Time `json:"modifiedOn"`
	SavedOn      time.Time `json:"savedOn"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Clone returns a deep copy of d.
func (d Declaration) Clone() Declaration {
	d.Data = d.Data.Clone()
	return d
}

// NewDeclaration builds a fresh DRAFT.
func NewDeclaration(id string, event EventType, now time.Time) Declaration {
	return Declaration{
		ID:         id,
		Event:      event,
		Data:       Data{},
		Status:     StatusDraft,
		ModifiedOn: now,
		SavedOn:    now,
		CreatedAt:  now,
	}
}
