// Package models defines the data the sync server persists.
package models

import "time"

// Account is a registered user of the sync server. Its ID equals the id of the
// "users" record created with it, so clients can address their own profile.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
