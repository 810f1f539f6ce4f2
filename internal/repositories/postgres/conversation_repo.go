package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/utils"
)

// ConversationFilter narrows a user's corpus for the query path. Start is
// inclusive, End exclusive; Topics matches conversations whose key_topics
// overlap any of the given topics.
type ConversationFilter struct {
	Start  *time.Time
	End    *time.Time
	Topics []string
}

type ConversationRepo interface {
	Insert(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string, f ConversationFilter) ([]models.Conversation, error)
	Update(ctx context.Context, c *models.Conversation) error
	UpdateTitle(ctx context.Context, id, title string) error
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Insert(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string, f ConversationFilter) ([]models.Conversation, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if f.Start != nil && f.End != nil {
		q = q.Where("start_time >= ? AND start_time < ?", *f.Start, *f.End)
	}
	if len(f.Topics) > 0 {
		q = q.Where("key_topics && ?", pq.Array(f.Topics))
	}

	var rows []models.Conversation
	err := q.Order("start_time DESC").Find(&rows).Error
	return rows, err
}

func (r *conversationRepo) Update(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *conversationRepo) UpdateTitle(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}
