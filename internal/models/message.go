package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Message struct {
	ID             string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Content        string `gorm:"column:content;type:text" json:"content"`
	Sender         Sender `gorm:"column:sender;type:text" json:"sender"`

	// Timestamp defines the canonical read order within a conversation.
	Timestamp time.Time `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`

	// Set once at creation iff the embedding call succeeded; never recomputed.
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) EmbeddingSlice() []float32 {
	if m.Embedding == nil {
		return nil
	}
	return m.Embedding.Slice()
}
