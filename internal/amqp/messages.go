package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSavedMessage announces that a device persisted a new draft
// snapshot. It carries only identifiers; the worker reads the payload
// from local storage.
type SnapshotSavedMessage struct {
	SnapshotID string    `json:"snapshot_id"`
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSnapshotSavedMessage(snapshotID, deviceID string, at time.Time) *SnapshotSavedMessage {
	return &SnapshotSavedMessage{
		SnapshotID: snapshotID,
		DeviceID:   deviceID,
		Timestamp:  at,
	}
}

func (m *SnapshotSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotSavedMessageFromJSON(data []byte) (*SnapshotSavedMessage, error) {
	var msg SnapshotSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
