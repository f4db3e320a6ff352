package ws

import (
	"encoding/json"
	"time"
)

// Message is the envelope written to websocket subscribers. Data carries the
// payload (a scan event for MessageTypeScanEvent) and is encoded as-is.
type Message struct {
	Type      string      `json:"type"`
	ScanID    string      `json:"scanId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// Marshal marshals the message to JSON bytes, stamping the time if unset.
func (m *Message) Marshal() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}

// NewScanEvent wraps a scan event for broadcast.
func NewScanEvent(scanID string, event interface{}) Message {
	return Message{Type: MessageTypeScanEvent, ScanID: scanID, Data: event, Timestamp: time.Now()}
}

const (
	MessageTypeScanEvent = "scan_event"
	MessageTypeLogEntry  = "log_entry"
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeError     = "error"
)
