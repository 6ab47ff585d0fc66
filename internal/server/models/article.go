package models

import "time"

// Article is a piece of content owned by its author. AuthorID never changes
// after creation. Author is set only when the author row was loaded.
type Article struct {
	ID        string
	AuthorID  string
	Author    *User
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
