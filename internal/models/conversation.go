package models

import (
	"time"

	"github.com/lib/pq"
)

type ConversationStatus string

const (
	StatusActive ConversationStatus = "active"
	StatusEnded  ConversationStatus = "ended"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type Conversation struct {
	ID     string             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string             `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Title  string             `gorm:"column:title;type:text" json:"title"`
	Status ConversationStatus `gorm:"column:status;type:text;default:active" json:"status"`

	StartTime time.Time  `gorm:"column:start_time;type:timestamptz;index" json:"start_time"`
	EndTime   *time.Time `gorm:"column:end_time;type:timestamptz" json:"end_time,omitempty"`

	// Derived analysis, written once during the active -> ended transition.
	Summary     string         `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Sentiment   Sentiment      `gorm:"column:sentiment;type:text" json:"sentiment,omitempty"`
	KeyTopics   pq.StringArray `gorm:"column:key_topics;type:text[]" json:"key_topics"`
	ActionItems pq.StringArray `gorm:"column:action_items;type:text[]" json:"action_items"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) Ended() bool { return c.Status == StatusEnded }
