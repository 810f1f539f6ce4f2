package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/echomind/backend/internal/models"
	"github.com/echomind/backend/internal/utils"
)

type AnalysisRepository interface {
	Create(ctx context.Context, a *models.ConversationAnalysis) error
	GetByConversationID(ctx context.Context, conversationID string) (*models.ConversationAnalysis, error)
}

type analysisRepo struct {
	col *mongo.Collection
}

func NewAnalysisRepo(db *mongo.Database) AnalysisRepository {
	return &analysisRepo{col: db.Collection("conversation_analyses")}
}

func (r *analysisRepo) Create(ctx context.Context, a *models.ConversationAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *analysisRepo) GetByConversationID(ctx context.Context, conversationID string) (*models.ConversationAnalysis, error) {
	var a models.ConversationAnalysis
	err := r.col.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}
