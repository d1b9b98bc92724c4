package amqp

import (
	"encoding/json"
	"time"
)

// InvalidationMessage tells the worker that checkpoints for a project from
// Date onward may be stale and should be re-committed. It carries only the
// key; the worker reads current state from the database.
type InvalidationMessage struct {
	ProjectID int64     `json:"project_id"`
	Date      string    `json:"date"` // YYYY-MM-DD, first affected day
	Timestamp time.Time `json:"timestamp"`
}

func NewInvalidationMessage(projectID int64, date string) *InvalidationMessage {
	return &InvalidationMessage{
		ProjectID: projectID,
		Date:      date,
		Timestamp: time.Now(),
	}
}

func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
