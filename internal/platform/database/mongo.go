// File: internal/platform/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"texplicit_backend/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	UsersCollection           = "USER_MASTER"
	DocumentsCollection       = "DOCUMENTS_MASTER"
	FeedbackCollection        = "CUSTOMER_FEEDBACK_COLLECTION"
	ChatsCollection           = "CHAT_MASTER"
	MenusCollection           = "MENU_MASTER"
	ReportsCollection         = "REPORTS_MASTER"
	DemoRequestsCollection    = "DEMO_REQUEST_COLLECTION"
	PaymentHistoryCollection  = "PAYMENT_HISTORY"
	PaymentOrdersCollection   = "PAYMENT_ORDERS"
	ReportPricingCollection   = "report_pricing"
	DocumentPricingCollection = "document_pricing"
	ChatPricingCollection     = "chat_pricing"
)

// NewMongo connects to MongoDB, verifies the connection and returns the application database.
func NewMongo(cfg *config.Config, logger *zap.Logger) (*mongo.Database, func(), error) {
	timeout := cfg.MongoConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoConnectionString))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	logger.Info("Successfully connected to MongoDB", zap.String("database", cfg.MongoDBName))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("Closing MongoDB connection...")
		if err := client.Disconnect(ctx); err != nil {
			logger.Error("Error closing MongoDB connection", zap.Error(err))
		}
	}
	return client.Database(cfg.MongoDBName), cleanup, nil
}

// ParseObjectID converts a hex id, returning false for malformed input.
func ParseObjectID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParseObjectIDs converts a list of hex ids, skipping malformed ones.
func ParseObjectIDs(hexes []string) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		if id, ok := ParseObjectID(h); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Ref is the {_id, ref} pointer stored on records that belong to another collection.
type Ref struct {
	ID  primitive.ObjectID `bson:"_id" json:"_id"`
	Ref string             `bson:"ref" json:"ref"`
}

// UserRef builds the owner pointer used across collections.
func UserRef(id primitive.ObjectID) Ref {
	return Ref{ID: id, Ref: "user"}
}
