package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/echomind/backend/internal/models"
)

type MessageRepo interface {
	Insert(ctx context.Context, m *models.Message) error
	// ListByConversation returns messages in timestamp order, the canonical
	// read order within a conversation.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// LatestN returns the n most recent messages, oldest first.
	LatestN(ctx context.Context, conversationID string, n int) ([]models.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&rows).Error
	return rows, err
}

func (r *messageRepo) LatestN(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	if n <= 0 {
		n = 10
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *messageRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}
