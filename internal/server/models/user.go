// Package models defines server-side data models persisted in the database.
package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role in ascending privilege order.
var Roles = []Role{RoleUser, RoleAdmin}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

const gravatarPrefix = "https://gravatar.com"

// MinPasswordLength is the shortest accepted plaintext password.
const MinPasswordLength = 6

// User is an account. PasswordHash and Services are never part of a view.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Picture      string
	Role         Role
	// Services maps an external identity provider to the user's id there.
	Services  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time

	pendingPassword *string
}

// SetEmail normalizes and stores the email and derives defaults from it:
// the picture becomes the gravatar for the address when it is empty or
// already a gravatar, and an empty name becomes the email's local part.
func (u *User) SetEmail(email string) {
	u.Email = NormalizeEmail(email)

	if u.Picture == "" || strings.HasPrefix(u.Picture, gravatarPrefix) {
		sum := md5.Sum([]byte(u.Email))
		u.Picture = gravatarPrefix + "/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
	}

	if u.Name == "" {
		u.Name = strings.SplitN(u.Email, "@", 2)[0]
	}
}

// NormalizeEmail trims and lowercases email. Stored emails are normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword records a new plaintext password. It is hashed by the service
// right before the user is persisted; until then PasswordHash is unchanged.
func (u *User) SetPassword(password string) {
	u.pendingPassword = &password
}

// PendingPassword returns the plaintext set via SetPassword, if any.
func (u *User) PendingPassword() (string, bool) {
	if u.pendingPassword == nil {
		return "", false
	}
	return *u.pendingPassword, true
}

// ApplyPasswordHash stores hash and clears the pending plaintext.
func (u *User) ApplyPasswordHash(hash string) {
	u.PasswordHash = hash
	u.pendingPassword = nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
