// Package models defines the client-side data model: records, retry queue
// entries and sync statistics.
package models

import (
	"encoding/json"
	"time"
)

// SyncStatus tells whether a record still has local changes to push.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
)

// Record is one stored entity of a synced table. Payload is opaque to the
// sync engine.
type Record struct {
	ID          string          `json:"id"`
	Table       string          `json:"table"`
	Payload     json.RawMessage `json:"payload"`
	LastUpdated time.Time       `json:"last_updated"`
	SyncStatus  SyncStatus      `json:"sync_status"`
}

// Pending reports whether r has unpushed local changes.
func (r *Record) Pending() bool {
	return r.SyncStatus == StatusPending
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}
