// Package models holds the server's persisted types.
package models

import "time"

type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	Admin        bool
	CreatedAt    time.Time
}
