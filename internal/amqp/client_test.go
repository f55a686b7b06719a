package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestNewSnapshotSavedMessage(t *testing.T) {
	at := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	msg := NewSnapshotSavedMessage("snap-1", "laptop", at)

	if msg.SnapshotID != "snap-1" {
		t.Errorf("SnapshotID = %v, want snap-1", msg.SnapshotID)
	}
	if msg.DeviceID != "laptop" {
		t.Errorf("DeviceID = %v, want laptop", msg.DeviceID)
	}
	if !msg.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, at)
	}
}

func TestSnapshotSavedMessage_JSON(t *testing.T) {
	msg := &SnapshotSavedMessage{
		SnapshotID: "snap-1",
		DeviceID:   "laptop",
		Timestamp:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SnapshotSavedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SnapshotSavedMessageFromJSON() error = %v", err)
	}
	if parsed.SnapshotID != msg.SnapshotID || parsed.DeviceID != msg.DeviceID {
		t.Errorf("parsed message mismatch: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSnapshotSavedMessage_InvalidJSON(t *testing.T) {
	if _, err := SnapshotSavedMessageFromJSON([]byte(`{"timestamp": 42`)); err == nil {
		t.Error("SnapshotSavedMessageFromJSON() should fail with invalid JSON")
	}
}
