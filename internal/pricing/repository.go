package pricing

import (
	"context"
	"fmt"

	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Categories(ctx context.Context) ([]Category, error)
}

type mongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{db: db}
}

// Categories unions the three pricing collections and groups their plans by collection name.
func (r *mongoRepository) Categories(ctx context.Context) ([]Category, error) {
	names := []string{database.ReportPricingCollection, database.DocumentPricingCollection, database.ChatPricingCollection}
	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{"category": names[0]}}},
	}
	for _, name := range names[1:] {
		pipeline = append(pipeline, bson.D{{Key: "$unionWith", Value: bson.M{
			"coll":     name,
			"pipeline": bson.A{bson.M{"$addFields": bson.M{"category": name}}},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{"_id": "$category", "documents": bson.M{"$push": "$$ROOT"}}}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 0, "category": "$_id", "documents": 1}}},
		bson.D{{Key: "$sort", Value: bson.M{"category": -1}}},
	)

	cursor, err := r.db.Collection(names[0]).Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, fmt.Errorf("aggregate pricing: %w", err)
	}
	defer cursor.Close(ctx)
	out := []Category{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pricing: %w", err)
	}
	return out, nil
}
