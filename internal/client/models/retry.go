package models

import (
	"encoding/json"
	"time"
)

// Operation is the remote call a retry entry replays.
type Operation string

const (
	OperationUpload Operation = "upload"
	OperationDelete Operation = "delete"
)

// RetryEntry is a durable record of a failed remote call.
//
// Snapshot is the payload at enqueue time and is informational only: an
// upload replay always sends the current local record.
type RetryEntry struct {
	ID         string
	Operation  Operation
	Table      string
	RecordID   string
	Snapshot   json.RawMessage
	EnqueuedAt time.Time
	RetryCount int
}
