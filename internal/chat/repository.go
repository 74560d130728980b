package chat

import (
	"context"
	"errors"
	"fmt"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository stores one chat history document per user.
type Repository interface {
	Append(ctx context.Context, userID string, entries ...Entry) error
	History(ctx context.Context, userID string) ([]Entry, error)
	Clear(ctx context.Context, userID string) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.ChatsCollection)}
}

func ownerFilter(userID string) (bson.M, error) {
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return nil, common.ErrNotFound
	}
	return bson.M{"user._id": oid, "user.ref": "user"}, nil
}

// Append pushes entries onto the history, creating it on first use.
func (r *mongoRepository) Append(ctx context.Context, userID string, entries ...Entry) error {
	filter, err := ownerFilter(userID)
	if err != nil {
		return err
	}
	update := bson.M{"$push": bson.M{"chat": bson.M{"$each": entries}}}
	if _, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	return nil
}

func (r *mongoRepository) History(ctx context.Context, userID string) ([]Entry, error) {
	filter, err := ownerFilter(userID)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Chat []Entry `bson:"chat"`
	}
	opts := options.FindOne().SetProjection(bson.M{"chat": 1})
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}
	if doc.Chat == nil {
		doc.Chat = []Entry{}
	}
	return doc.Chat, nil
}

func (r *mongoRepository) Clear(ctx context.Context, userID string) error {
	filter, err := ownerFilter(userID)
	if err != nil {
		return err
	}
	if _, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"chat": bson.A{}}}); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	return nil
}
