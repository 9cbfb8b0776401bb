package models

// UnknownAuthorID is written in place of an author id when the account was
// deleted or removed upstream. No users row is ever stored for it.
const UnknownAuthorID = "t2_nan"

// Author represents a Reddit account row. Karma columns are text and stay
// NULL unless karma capture is enabled.
type Author struct {
	ID           string  `json:"user_id" gorm:"column:user_id;primaryKey"`
	Name         string  `json:"user_name" gorm:"column:user_name;not null"`
	LinkKarma    *string `json:"link_karma,omitempty" gorm:"column:link_karma"`
	CommentKarma *string `json:"comment_karma,omitempty" gorm:"column:comment_karma"`
}

func (Author) TableName() string { return "users" }

// RecordID returns the account fullname.
func (a *Author) RecordID() string { return a.ID }
