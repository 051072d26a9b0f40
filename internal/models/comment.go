package models

import "time"

// Comment is a reply attached to a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	Text      string    `gorm:"column:comment;type:text;not null" json:"comment"`
	IsBlocked bool      `gorm:"not null;index" json:"is_blocked"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModeratedFields returns the comment text that moderation screens.
func (c *Comment) ModeratedFields() []string {
	return []string{c.Text}
}

// DailyBreakdown is one day of comment activity.
type DailyBreakdown struct {
	Day          string `json:"day"`
	CreatedCount int64  `json:"created_count"`
	BlockedCount int64  `json:"blocked_count"`
}
