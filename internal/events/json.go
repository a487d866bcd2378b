package events

import "time"

// JSONEvent is the NDJSON wire format an audit-log Handler writes: one
// JSON object per line, so an operator can `tail -f` or `jq` the log.
type JSONEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JobID     *int64         `json:"jobId,omitempty"`
	AppID     string         `json:"appid,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ToJSONEvent converts e to its wire format.
func ToJSONEvent(e Event) JSONEvent {
	je := JSONEvent{
		Type:      string(e.Type),
		Timestamp: e.Time,
		JobID:     e.JobID,
		AppID:     e.AppID,
		TaskID:    e.TaskID,
		Error:     e.Error,
	}

	if e.Payload != nil {
		if p, ok := e.Payload.(map[string]any); ok {
			je.Payload = p
		} else {
			je.Payload = map[string]any{"value": e.Payload}
		}
	}

	return je
}

// ToEvent converts a wire-format JSONEvent back to an Event.
func (je JSONEvent) ToEvent() Event {
	var payload any
	if je.Payload != nil {
		payload = je.Payload
	}

	return Event{
		Type:    EventType(je.Type),
		Time:    je.Timestamp,
		JobID:   je.JobID,
		AppID:   je.AppID,
		TaskID:  je.TaskID,
		Payload: payload,
		Error:   je.Error,
	}
}
