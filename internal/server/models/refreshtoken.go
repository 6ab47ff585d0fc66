package models

import "time"

// RefreshToken is a server-stored opaque token exchangeable for a new
// access/refresh pair until Expires.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
