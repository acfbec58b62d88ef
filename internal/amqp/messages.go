package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImportJobMessage is the wire payload for a queued CSV import. Only
// identifiers travel on the wire; the CSV bytes stay in the job store.
type ImportJobMessage struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportJobMessage(jobID, sessionID string) ImportJobMessage {
	return ImportJobMessage{
		JobID:     jobID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

func (m ImportJobMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling import job message: %w", err)
	}
	return data, nil
}

func ImportJobMessageFromJSON(data []byte) (ImportJobMessage, error) {
	var m ImportJobMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ImportJobMessage{}, fmt.Errorf("unmarshaling import job message: %w", err)
	}
	if m.JobID == "" {
		return ImportJobMessage{}, fmt.Errorf("import job message missing job_id")
	}
	if m.SessionID == "" {
		return ImportJobMessage{}, fmt.Errorf("import job message missing session_id")
	}
	return m, nil
}
