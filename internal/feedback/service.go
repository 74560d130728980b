// Package feedback stores messages sent through the public contact form.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Repository interface {
	Insert(ctx context.Context, f *Feedback) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.FeedbackCollection)}
}

func (r *mongoRepository) Insert(ctx context.Context, f *Feedback) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, f); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Save records the feedback and returns its id.
func (s *Service) Save(ctx context.Context, req CreateRequest) (string, error) {
	f := &Feedback{
		EmailID:      strings.TrimSpace(req.Email),
		CustomerName: strings.TrimSpace(req.Name),
		PhoneNumber:  req.PhoneNumber.Value,
		Comments:     strings.TrimSpace(req.Comments),
		Created:      s.now().UTC(),
	}
	if f.CustomerName == "" || f.Comments == "" {
		return "", common.ErrMissingParameters
	}
	if err := s.repo.Insert(ctx, f); err != nil {
		s.logger.Error("Failed to save feedback", zap.String("email", f.EmailID), zap.Error(err))
		return "", common.ErrBadRequest.WithMessage(common.MsgErrorCustomerFeedbackSave)
	}
	return f.ID.Hex(), nil
}
