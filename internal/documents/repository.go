// File: internal/documents/repository.go
package documents

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists document and folder records.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, id string) (*Document, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Document, error)
	FindByVirtualName(ctx context.Context, name string) (*Document, error)
	// FindByRoot returns the direct children of root.
	FindByRoot(ctx context.Context, root string) ([]*Document, error)
	// FindUnder returns everything the owner has at root or below it.
	FindUnder(ctx context.Context, ownerID, root string) ([]*Document, error)
	ListOwned(ctx context.Context, ownerID, root string, limit, offset int64) ([]*Document, error)
	ListShared(ctx context.Context, userID string, limit, offset int64) ([]*Document, error)
	ListFolders(ctx context.Context, ownerID string) ([]*Document, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	ShareWith(ctx context.Context, ownerID string, documentIDs, userIDs []string) (int64, error)
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.DocumentsCollection)}
}

// listProjection keeps the extracted text and vector bookkeeping out of listings.
var listProjection = bson.M{"description": 0, "highlightsSummary": 0, "embeddings": 0, "vectorCount": 0}

func (r *mongoRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.UsersWithAccess == nil {
		doc.UsersWithAccess = []primitive.ObjectID{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*Document, error) {
	var doc Document
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundDocument)
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

func (r *mongoRepository) findMany(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*Document, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (*Document, error) {
	oid, ok := database.ParseObjectID(id)
	if !ok {
		return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundDocument)
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) FindByIDs(ctx context.Context, ids []string) ([]*Document, error) {
	oids := database.ParseObjectIDs(ids)
	if len(oids) == 0 {
		return []*Document{}, nil
	}
	return r.findMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *mongoRepository) FindByVirtualName(ctx context.Context, name string) (*Document, error) {
	return r.findOne(ctx, bson.M{"virtualFileName": name})
}

func (r *mongoRepository) FindByRoot(ctx context.Context, root string) ([]*Document, error) {
	return r.findMany(ctx, bson.M{"root": root}, options.Find().SetProjection(listProjection))
}

func (r *mongoRepository) FindUnder(ctx context.Context, ownerID, root string) ([]*Document, error) {
	oid, ok := database.ParseObjectID(ownerID)
	if !ok {
		return []*Document{}, nil
	}
	filter := bson.M{
		"createdBy._id": oid,
		"root":          primitive.Regex{Pattern: "^" + regexp.QuoteMeta(root) + "(/|$)"},
	}
	return r.findMany(ctx, filter, options.Find().SetProjection(bson.M{"description": 0, "highlightsSummary": 0}))
}

func (r *mongoRepository) ListOwned(ctx context.Context, ownerID, root string, limit, offset int64) ([]*Document, error) {
	oid, ok := database.ParseObjectID(ownerID)
	if !ok {
		return []*Document{}, nil
	}
	opts := options.Find().
		SetProjection(listProjection).
		SetSort(bson.D{{Key: "type", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)
	return r.findMany(ctx, bson.M{"createdBy._id": oid, "root": root}, opts)
}

// ListShared returns the files shared with userID, each carrying its owner's name.
func (r *mongoRepository) ListShared(ctx context.Context, userID string, limit, offset int64) ([]*Document, error) {
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return []*Document{}, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"usersWithAccess": oid}}},
		{{Key: "$sort", Value: bson.M{"_id": -1}}},
		{{Key: "$skip", Value: offset}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         database.UsersCollection,
			"localField":   "createdBy._id",
			"foreignField": "_id",
			"as":           "ownerDetails",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$ownerDetails", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$addFields", Value: bson.M{"owner": "$ownerDetails.name", "usersWithAccess": bson.A{}}}},
		{{Key: "$project", Value: bson.M{"ownerDetails": 0, "description": 0, "highlightsSummary": 0, "embeddings": 0, "vectorCount": 0}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate shared documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode shared documents: %w", err)
	}
	return docs, nil
}

func (r *mongoRepository) ListFolders(ctx context.Context, ownerID string) ([]*Document, error) {
	oid, ok := database.ParseObjectID(ownerID)
	if !ok {
		return []*Document{}, nil
	}
	return r.findMany(ctx, bson.M{"createdBy._id": oid, "type": domain.DocumentFolder},
		options.Find().SetSort(bson.M{"root": 1}))
}

func (r *mongoRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound.WithMessage(common.MsgNotFoundDocument)
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return res.DeletedCount, nil
}

// ShareWith adds userIDs to the access list of the owner's documents.
func (r *mongoRepository) ShareWith(ctx context.Context, ownerID string, documentIDs, userIDs []string) (int64, error) {
	owner, ok := database.ParseObjectID(ownerID)
	if !ok {
		return 0, common.ErrNotFound
	}
	docs := database.ParseObjectIDs(documentIDs)
	users := database.ParseObjectIDs(userIDs)
	if len(docs) == 0 || len(users) == 0 {
		return 0, nil
	}
	filter := bson.M{"_id": bson.M{"$in": docs}, "createdBy._id": owner}
	update := bson.M{"$addToSet": bson.M{"usersWithAccess": bson.M{"$each": users}}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("share documents: %w", err)
	}
	return res.ModifiedCount, nil
}
