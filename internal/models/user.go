package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the wire-level user reference used by chat payloads. The
// numeric id never addresses a room; rooms are addressed by their opaque
// unique_id token.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
