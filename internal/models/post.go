package models

import "time"

// Post represents a Reddit submission as stored in the posts table.
type Post struct {
	ID          string     `json:"post_id" gorm:"column:post_id;primaryKey"`
	AuthorID    string     `json:"user_id" gorm:"column:user_id;index"`
	CommunityID string     `json:"sub_id" gorm:"column:sub_id;index"`
	Community   *Community `json:"-" gorm:"foreignKey:CommunityID;references:ID"`
	Title       string     `json:"title" gorm:"column:title"`
	Created     time.Time  `json:"created" gorm:"column:created"`
	Score       int        `json:"score" gorm:"column:score"`
	Body        string     `json:"body" gorm:"column:body"`
	NumComments int        `json:"num_comments" gorm:"column:num_comments"`
	IsSelf      bool       `json:"is_self" gorm:"column:is_self"`
	TargetURL   string     `json:"target_url" gorm:"column:target_url"`
	Permalink   string     `json:"permalink" gorm:"column:permalink"`
}

// TableName pins the table name shared with other tools reading the store.
func (Post) TableName() string { return "posts" }

// RecordID returns the post fullname.
func (p *Post) RecordID() string { return p.ID }

// Comment represents a Reddit comment as stored in the comments table.
type Comment struct {
	ID        string    `json:"comment_id" gorm:"column:comment_id;primaryKey"`
	AuthorID  string    `json:"user_id" gorm:"column:user_id;index"`
	PostID    string    `json:"post_id" gorm:"column:post_id;index"`
	Post      *Post     `json:"-" gorm:"foreignKey:PostID;references:ID"`
	Created   time.Time `json:"created" gorm:"column:created"`
	Score     int       `json:"score" gorm:"column:score"`
	Gilds     int       `json:"gilds" gorm:"column:gilds"`
	Body      string    `json:"body" gorm:"column:body"`
	Permalink string    `json:"permalink" gorm:"column:permalink"`
}

func (Comment) TableName() string { return "comments" }

// RecordID returns the comment fullname.
func (c *Comment) RecordID() string { return c.ID }
