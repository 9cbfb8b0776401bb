package models

import "time"

// Community represents a subreddit row.
type Community struct {
	ID                string    `json:"sub_id" gorm:"column:sub_id;primaryKey"`
	Name              string    `json:"sub_name" gorm:"column:sub_name;not null"`
	Description       string    `json:"description" gorm:"column:description"`
	PublicDescription string    `json:"public_description" gorm:"column:public_description"`
	Created           time.Time `json:"created" gorm:"column:created"`
	Subscribers       int       `json:"sub_count" gorm:"column:sub_count"`
	Audience          string    `json:"audience" gorm:"column:audience"`
	URL               string    `json:"url" gorm:"column:url"`
}

func (Community) TableName() string { return "subreddits" }

// RecordID returns the subreddit fullname.
func (c *Community) RecordID() string { return c.ID }
