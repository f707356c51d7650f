// Package events carries observational telemetry from the agent to any number
// of subscribers (terminal printer, metrics collector). Nothing in the agent
// reads events back; emitting never blocks the caller.
package events

import (
	"fmt"
	"time"
)

// Kind identifies the type of an event.
type Kind string

const (
	KindTaskStarted        Kind = "task_started"
	KindTaskProgress       Kind = "task_progress"
	KindTaskCompleted      Kind = "task_completed"
	KindTaskFailed         Kind = "task_failed"
	KindArtifactCreated    Kind = "artifact_created"
	KindArtifactUpdated    Kind = "artifact_updated"
	KindArtifactDeleted    Kind = "artifact_deleted"
	KindContextCreated     Kind = "context_created"
	KindContextUpdated     Kind = "context_updated"
	KindContextCleared     Kind = "context_cleared"
	KindContextCompressed  Kind = "context_compressed"
	KindAPICallStarted     Kind = "api_call_started"
	KindAPICallCompleted   Kind = "api_call_completed"
	KindAPICallFailed      Kind = "api_call_failed"
	KindTokensUsed         Kind = "tokens_used"
	KindExecutionStarted   Kind = "execution_started"
	KindExecutionCompleted Kind = "execution_completed"
	KindLogLine            Kind = "log_line"
	KindWarning            Kind = "warning"
	KindCustom             Kind = "custom"
)

// Well-known Data keys.
const (
	KeyTaskID         = "task_id"
	KeyDescription    = "description"
	KeyResult         = "result"
	KeyError          = "error"
	KeyProgress       = "progress"
	KeyMessage        = "message"
	KeyArtifactID     = "artifact_id"
	KeyName           = "name"
	KeyArtifactType   = "artifact_type"
	KeyContextID      = "context_id"
	KeyProvider       = "provider"
	KeyModel          = "model"
	KeyInputTokens    = "input_tokens"
	KeyOutputTokens   = "output_tokens"
	KeyCost           = "cost"
	KeyLevel          = "level"
	KeyIteration      = "iteration"
	KeyPhase          = "phase"
	KeyStepID         = "step_id"
	KeyTotalTokens    = "total_tokens"
	KeyOriginalTokens = "original_tokens"
	KeyDuration       = "duration_ms"
	KeyCustomType     = "custom_type"
)

// Event is a single telemetry record.
type Event struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New builds an event of the given kind from alternating key/value pairs.
func New(kind Kind, kv ...interface{}) Event {
	data := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		data[key] = kv[i+1]
	}
	return Event{Kind: kind, Data: data}
}

// String returns the string value stored under key, or "".
func (e Event) String(key string) string {
	switch v := e.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value stored under key, or 0.
func (e Event) Int(key string) int {
	switch v := e.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Float returns the float value stored under key, or 0.
func (e Event) Float(key string) float64 {
	switch v := e.Data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func TaskStarted(taskID, description string) Event {
	return New(KindTaskStarted, KeyTaskID, taskID, KeyDescription, description)
}

// TaskProgress reports progress in [0,1] with a human readable message.
func TaskProgress(taskID string, progress float64, message string) Event {
	return New(KindTaskProgress, KeyTaskID, taskID, KeyProgress, progress, KeyMessage, message)
}

func TaskCompleted(taskID, result string) Event {
	return New(KindTaskCompleted, KeyTaskID, taskID, KeyResult, result)
}

func TaskFailed(taskID, reason string) Event {
	return New(KindTaskFailed, KeyTaskID, taskID, KeyError, reason)
}

func ArtifactCreated(id, name, artifactType string) Event {
	return New(KindArtifactCreated, KeyArtifactID, id, KeyName, name, KeyArtifactType, artifactType)
}

func ArtifactUpdated(id, name string) Event {
	return New(KindArtifactUpdated, KeyArtifactID, id, KeyName, name)
}

func LogLine(level, message string) Event {
	return New(KindLogLine, KeyLevel, level, KeyMessage, message)
}

func Warning(message string) Event {
	return New(KindWarning, KeyMessage, message)
}

// Custom wraps an application-specific payload under a free-form type name.
func Custom(customType string, kv ...interface{}) Event {
	e := New(KindCustom, kv...)
	e.Data[KeyCustomType] = customType
	return e
}
