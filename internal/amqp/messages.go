package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"kcal/internal/core"
)

// DaySyncMessage announces that one ledger day changed.
// It carries only the date; the worker reloads the day from storage.
type DaySyncMessage struct {
	Date      core.DateKey `json:"date"`
	Version   int64        `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewDaySyncMessage(key core.DateKey, version int64) *DaySyncMessage {
	return &DaySyncMessage{
		Date:      key,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *DaySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DaySyncMessageFromJSON decodes and validates a message body.
func DaySyncMessageFromJSON(data []byte) (*DaySyncMessage, error) {
	var msg DaySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Date.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidDateKey, msg.Date)
	}
	return &msg, nil
}
