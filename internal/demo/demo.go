// Package demo records product demo requests and confirms them by mail.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/mail"
	"texplicit_backend/internal/platform/database"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Request is a stored demo request. Extra form fields are kept as sent.
type Request struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email    string             `bson:"email" json:"email" binding:"required,email"`
	Name     string             `bson:"name" json:"name" binding:"required"`
	Phone    string             `bson:"phone,omitempty" json:"phone"`
	Company  string             `bson:"company,omitempty" json:"company"`
	Comments string             `bson:"comments,omitempty" json:"comments"`
	Created  time.Time          `bson:"created" json:"created"`
}

type Repository interface {
	Insert(ctx context.Context, r *Request) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.DemoRequestsCollection)}
}

func (m *mongoRepository) Insert(ctx context.Context, r *Request) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, err := m.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert demo request: %w", err)
	}
	return nil
}

type Service struct {
	repo   Repository
	mailer mail.Mailer
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, mailer mail.Mailer, logger *zap.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, logger: logger, now: time.Now}
}

// Save stores the request and mails a confirmation to the requester. A failed mail does
// not fail the request.
func (s *Service) Save(ctx context.Context, req Request) (string, error) {
	req.ID = primitive.NilObjectID
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		return "", common.ErrMissingParameters
	}
	req.Created = s.now().UTC()
	if err := s.repo.Insert(ctx, &req); err != nil {
		s.logger.Error("Failed to save demo request", zap.String("email", req.Email), zap.Error(err))
		return "", common.ErrBadRequest.WithMessage(common.MsgErrorDemoRequest)
	}

	msg, err := mail.DemoConfirmation(mail.Recipient{Name: req.Name, Email: req.Email})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("Failed to confirm demo request", zap.String("email", req.Email), zap.Error(err))
	}
	return req.ID.Hex(), nil
}

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/demo", h.create)
}

func (h *Handler) create(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDemoRequest, id)
}
