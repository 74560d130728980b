// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines the interface for user data operations.
type Repository interface {
	subscription.Store

	Create(ctx context.Context, user *shared.User) error
	FindByID(ctx context.Context, id string) (*shared.User, error)
	FindByEmail(ctx context.Context, email string) (*shared.User, error)
	FindAll(ctx context.Context) ([]*shared.User, error)
	FindBaseUsers(ctx context.Context) ([]*shared.User, error)
	Update(ctx context.Context, id string, fields bson.M) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetImage(ctx context.Context, id, image string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	FindChildren(ctx context.Context, parentID string, skip, limit int64) ([]*shared.User, int64, error)
	FindChild(ctx context.Context, parentID, childID string) (*shared.User, error)
	FindExpired(ctx context.Context, now time.Time) ([]*shared.User, error)
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a repository over USER_MASTER.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.UsersCollection)}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, ok := database.ParseObjectID(id)
	if !ok {
		return primitive.NilObjectID, ErrUserNotFound
	}
	return oid, nil
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*shared.User, error) {
	var u shared.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (r *mongoRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*shared.User, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users := []*shared.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r *mongoRepository) updateByID(ctx context.Context, id string, update interface{}) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Create inserts a new user and sets its id.
func (r *mongoRepository) Create(ctx context.Context, user *shared.User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (*shared.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) FindByEmail(ctx context.Context, email string) (*shared.User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (r *mongoRepository) FindAll(ctx context.Context) ([]*shared.User, error) {
	return r.findMany(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
}

// FindBaseUsers lists Personal and Professional accounts, newest first.
func (r *mongoRepository) FindBaseUsers(ctx context.Context) ([]*shared.User, error) {
	filter := bson.M{"role": bson.M{"$in": bson.A{domain.RolePersonal, domain.RoleProfessional}}}
	return r.findMany(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
}

func (r *mongoRepository) Update(ctx context.Context, id string, fields bson.M) error {
	if len(fields) == 0 {
		return nil
	}
	if email, ok := fields["email"].(string); ok {
		fields["email"] = NormalizeEmail(email)
	}
	return r.updateByID(ctx, id, bson.M{"$set": fields})
}

func (r *mongoRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"passwordHash": passwordHash}})
}

func (r *mongoRepository) SetImage(ctx context.Context, id, image string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"image": image}})
}

func (r *mongoRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"isActive": active}})
}

func (r *mongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindChildren returns a page of the active children of parentID sorted by _id, with the total count.
func (r *mongoRepository) FindChildren(ctx context.Context, parentID string, skip, limit int64) ([]*shared.User, int64, error) {
	pid, err := objectID(parentID)
	if err != nil {
		return nil, 0, err
	}
	filter := bson.M{"parentUserId": pid, "isActive": true}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count children: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit).
		SetProjection(bson.M{"name": 1, "email": 1, "parentUserId": 1, "isActive": 1, "permissions.menu": 1})
	users, err := r.findMany(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *mongoRepository) FindChild(ctx context.Context, parentID, childID string) (*shared.User, error) {
	pid, err := objectID(parentID)
	if err != nil {
		return nil, err
	}
	cid, err := objectID(childID)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": cid, "parentUserId": pid})
}

// FindExpired returns active, non-admin users whose subscription ended before now.
func (r *mongoRepository) FindExpired(ctx context.Context, now time.Time) ([]*shared.User, error) {
	filter := bson.M{
		"isActive": true,
		"role":     bson.M{"$ne": domain.RoleAdmin},
		"permissions.subscription_duration.end_date": bson.M{"$lt": now},
	}
	return r.findMany(ctx, filter, options.Find().SetProjection(bson.M{"passwordHash": 0}))
}

// SetPermissions replaces the permissions subdocument.
func (r *mongoRepository) SetPermissions(ctx context.Context, userID string, perms shared.Permissions) error {
	return r.updateByID(ctx, userID, bson.M{"$set": bson.M{"permissions": perms}})
}

func (r *mongoRepository) IncrementChatUsage(ctx context.Context, userID string) error {
	return r.updateByID(ctx, userID, bson.M{"$inc": bson.M{"permissions.chat.used.chat_count": 1}})
}

func (r *mongoRepository) IncrementReportUsage(ctx context.Context, userID string, reportType domain.ReportType, weight float64) error {
	return r.updateByID(ctx, userID, bson.M{"$inc": bson.M{
		"permissions.report.used." + subscription.ReportTotalKey: weight,
		"permissions.report.used." + string(reportType):          1,
	}})
}

func (r *mongoRepository) IncrementDocumentUsage(ctx context.Context, userID string, bytes int64) error {
	return r.updateByID(ctx, userID, bson.M{"$inc": bson.M{"permissions.document.used.document_size": bytes}})
}

// ApplyPurchase adds the plan allowances and moves end_date to max(end_date, now) + extendBy
// in a single pipeline update.
func (r *mongoRepository) ApplyPurchase(ctx context.Context, userID string, p subscription.Purchase, extendBy time.Duration) error {
	sum := func(field string, v interface{}) bson.M {
		return bson.M{"$sum": bson.A{"$" + field, v}}
	}
	set := bson.M{
		"permissions.chat.allowed.chat_count":          sum("permissions.chat.allowed.chat_count", p.ChatCount),
		"permissions.document.allowed.document_size":   sum("permissions.document.allowed.document_size", p.DocumentBytes),
		"permissions.report.allowed.total":             sum("permissions.report.allowed.total", p.ReportCount),
		"permissions.subscription_duration.start_date": bson.M{"$ifNull": bson.A{"$permissions.subscription_duration.start_date", "$$NOW"}},
		"permissions.subscription_duration.end_date": bson.M{"$add": bson.A{
			bson.M{"$max": bson.A{"$permissions.subscription_duration.end_date", "$$NOW"}},
			extendBy.Milliseconds(),
		}},
	}
	for _, t := range domain.ReportTypes {
		field := "permissions.report.allowed." + string(t)
		set[field] = sum(field, p.ReportCount)
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	return r.updateByID(ctx, userID, pipeline)
}

// EnsureIndexes creates the unique email index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(database.UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}
