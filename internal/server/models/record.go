package models

import (
	"encoding/json"
	"time"
)

// Record is one row of a synced table. ID is assigned by the server as the
// table's prefix followed by a global sequence number.
type Record struct {
	Table       string
	ID          string
	Payload     json.RawMessage
	LastUpdated time.Time
	UpdatedBy   string
}
