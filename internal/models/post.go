package models

import "time"

// Post is a titled piece of user content that comments attach to.
type Post struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	User             *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	IsBlocked        bool      `gorm:"not null;index" json:"is_blocked"`
	AutoReplyEnabled bool      `gorm:"not null" json:"auto_reply_enabled"`
	AutoReplyDelay   int       `gorm:"not null" json:"auto_reply_delay"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ModeratedFields returns the post text that moderation screens.
func (p *Post) ModeratedFields() []string {
	return []string{p.Title, p.Content}
}
