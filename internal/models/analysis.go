package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationAnalysis is an immutable audit record created exactly once,
// when a conversation transitions from active to ended.
type ConversationAnalysis struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`

	SentimentScore    float64            `bson:"sentiment_score" json:"sentiment_score"`
	TopicDistribution map[string]float64 `bson:"topic_distribution" json:"topic_distribution"`
	KeyPhrases        []string           `bson:"key_phrases" json:"key_phrases"`

	MessageCount  int64    `bson:"message_count" json:"message_count"`
	AvgResponseMS *float64 `bson:"avg_response_ms,omitempty" json:"avg_response_ms,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
