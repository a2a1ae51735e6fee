package domain

import "time"

// User represents a registered identity of the system.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}
