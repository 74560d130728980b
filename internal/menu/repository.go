// File: internal/menu/repository.go
package menu

import (
	"context"
	"fmt"

	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines the interface for menu data operations.
type Repository interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Menu, error)
	FindByIndexes(ctx context.Context, indexes []int) ([]Menu, error)
	FindAllExcept(ctx context.Context, excluded ...int) ([]Menu, error)
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, menus []Menu) error
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a repository over MENU_MASTER.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.MenusCollection)}
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M) ([]Menu, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find menus: %w", err)
	}
	menus := []Menu{}
	if err := cursor.All(ctx, &menus); err != nil {
		return nil, fmt.Errorf("decode menus: %w", err)
	}
	return menus, nil
}

func (r *mongoRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Menu, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoRepository) FindByIndexes(ctx context.Context, indexes []int) ([]Menu, error) {
	return r.find(ctx, bson.M{"index": bson.M{"$in": indexes}})
}

func (r *mongoRepository) FindAllExcept(ctx context.Context, excluded ...int) ([]Menu, error) {
	if len(excluded) == 0 {
		return r.find(ctx, bson.M{})
	}
	return r.find(ctx, bson.M{"index": bson.M{"$nin": excluded}})
}

func (r *mongoRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r *mongoRepository) InsertMany(ctx context.Context, menus []Menu) error {
	docs := make([]interface{}, 0, len(menus))
	for i := range menus {
		docs = append(docs, menus[i])
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}

// defaultMenus mirrors the MenuItem enum.
func defaultMenus() []Menu {
	entries := domain.MenuItemList()
	out := make([]Menu, 0, len(entries))
	for _, e := range entries {
		out = append(out, Menu{Name: e.Value, Index: e.ID})
	}
	return out
}
