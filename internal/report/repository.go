// File: internal/report/repository.go
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Query selects a page of one user's reports.
type Query struct {
	Owner primitive.ObjectID
	// Status keeps only these statuses; Exclude drops these. Both empty means any status.
	Status  []domain.ReportStatus
	Exclude []domain.ReportStatus
	Filter
	Limit  int64
	Offset int64
}

type Repository interface {
	Create(ctx context.Context, r *Report) error
	FindByID(ctx context.Context, id string) (*Report, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Report, error)
	List(ctx context.Context, q Query) ([]*Report, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteFailed(ctx context.Context, owner primitive.ObjectID) (int64, error)
	// FailStale marks pending reports created before cutoff as failed and returns them.
	// A zero owner matches every user.
	FailStale(ctx context.Context, owner primitive.ObjectID, cutoff time.Time) ([]*Report, error)
	// ListFinished pages through successful reports in _id order, starting after the given id.
	ListFinished(ctx context.Context, after primitive.ObjectID, limit int64) ([]*Report, error)
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(database.ReportsCollection)}
}

func (r *mongoRepository) Create(ctx context.Context, rep *Report) error {
	if rep.ID.IsZero() {
		rep.ID = primitive.NewObjectID()
	}
	if rep.Subtopics == nil {
		rep.Subtopics = []string{}
	}
	if rep.URLs == nil {
		rep.URLs = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, rep); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*Report, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := []*Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (*Report, error) {
	oid, ok := database.ParseObjectID(id)
	if !ok {
		return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
	}
	var rep Report
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&rep); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &rep, nil
}

func (r *mongoRepository) FindByIDs(ctx context.Context, ids []string) ([]*Report, error) {
	oids := database.ParseObjectIDs(ids)
	if len(oids) == 0 {
		return []*Report{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *mongoRepository) List(ctx context.Context, q Query) ([]*Report, error) {
	filter := bson.M{"createdBy._id": q.Owner}
	switch {
	case len(q.Status) > 0:
		filter["status.value"] = bson.M{"$in": q.Status}
	case len(q.Exclude) > 0:
		filter["status.value"] = bson.M{"$nin": q.Exclude}
	}
	if q.Source != "" {
		filter["source"] = q.Source
	}
	if q.Format != "" {
		filter["format"] = q.Format
	}
	if q.ReportType != "" {
		filter["report_type"] = q.ReportType
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdOn", Value: -1}})
	if q.Offset > 0 {
		opts.SetSkip(q.Offset)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	return r.find(ctx, filter, opts)
}

func (r *mongoRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrNotFound.WithMessage(common.MsgNotFoundReport)
	}
	return nil
}

func (r *mongoRepository) DeleteFailed(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"createdBy._id": owner, "status.value": domain.ReportFailure})
	if err != nil {
		return 0, fmt.Errorf("delete failed reports: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *mongoRepository) FailStale(ctx context.Context, owner primitive.ObjectID, cutoff time.Time) ([]*Report, error) {
	filter := bson.M{"status.value": domain.ReportPending, "createdOn": bson.M{"$lt": cutoff}}
	if !owner.IsZero() {
		filter["createdBy._id"] = owner
	}
	stale, err := r.find(ctx, filter, options.Find().SetProjection(bson.M{"report": 0}))
	if err != nil || len(stale) == 0 {
		return stale, err
	}
	ids := make([]primitive.ObjectID, 0, len(stale))
	for _, rep := range stale {
		ids = append(ids, rep.ID)
		rep.Status = statusOf(domain.ReportFailure)
	}
	// Re-check the status so a report finished in between is left alone.
	_, err = r.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status.value": domain.ReportPending},
		bson.M{"$set": bson.M{"status": statusOf(domain.ReportFailure)}},
	)
	if err != nil {
		return nil, fmt.Errorf("mark stale reports: %w", err)
	}
	return stale, nil
}

func (r *mongoRepository) ListFinished(ctx context.Context, after primitive.ObjectID, limit int64) ([]*Report, error) {
	filter := bson.M{"status.value": domain.ReportSuccess}
	if !after.IsZero() {
		filter["_id"] = bson.M{"$gt": after}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.M{"_id": 1}).SetLimit(limit))
}
