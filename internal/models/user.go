// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account that owns posts and comments.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string    `gorm:"size:254" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	IsStaff   bool      `gorm:"not null" json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is the authenticated identity making a request.
type Principal struct {
	ID      uint
	IsStaff bool
}

// Principal returns the user as a request principal.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, IsStaff: u.IsStaff}
}
