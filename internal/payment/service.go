// Package payment takes Razorpay payments and turns them into subscription top-ups.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/platform/database"
	"texplicit_backend/internal/subscription"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const orderCurrency = "INR"

// ErrDuplicatePayment is returned by Repository.Insert for a payment id already recorded.
var ErrDuplicatePayment = errors.New("payment already recorded")

type Repository interface {
	Insert(ctx context.Context, h *History) error
	// ClaimApply flips applied to true and reports whether this call did it.
	ClaimApply(ctx context.Context, paymentID string) (bool, error)
	ReleaseApply(ctx context.Context, paymentID string) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]History, error)
	InsertOrder(ctx context.Context, o *Order) error
	FindOrder(ctx context.Context, orderID string) (*Order, error)
}

const paymentIDField = "payment_details.razorpay_payment_id"

type mongoRepository struct {
	coll   *mongo.Collection
	orders *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		coll:   db.Collection(database.PaymentHistoryCollection),
		orders: db.Collection(database.PaymentOrdersCollection),
	}
}

// EnsureIndexes makes payment ids and order ids unique.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(database.PaymentHistoryCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: paymentIDField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create payment id index: %w", err)
	}
	_, err = db.Collection(database.PaymentOrdersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create order id index: %w", err)
	}
	return nil
}

func (r *mongoRepository) Insert(ctx context.Context, h *History) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, h); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment history: %w", err)
	}
	return nil
}

func (r *mongoRepository) ClaimApply(ctx context.Context, paymentID string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{paymentIDField: paymentID, "applied": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"applied": true}})
	if err != nil {
		return false, fmt.Errorf("claim payment %s: %w", paymentID, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoRepository) ReleaseApply(ctx context.Context, paymentID string) error {
	if _, err := r.coll.UpdateOne(ctx, bson.M{paymentIDField: paymentID}, bson.M{"$set": bson.M{"applied": false}}); err != nil {
		return fmt.Errorf("release payment %s: %w", paymentID, err)
	}
	return nil
}

func (r *mongoRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]History, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"createdBy._id": userID}, options.Find().SetSort(bson.D{{Key: "createdOn", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find payment history: %w", err)
	}
	defer cursor.Close(ctx)
	out := []History{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode payment history: %w", err)
	}
	return out, nil
}

func (r *mongoRepository) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := r.orders.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

func (r *mongoRepository) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.orders.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment order: %w", err)
	}
	return &o, nil
}

// Extender tops up a user's subscription.
type Extender interface {
	Extend(ctx context.Context, userID string, p subscription.Purchase) error
}

type Service struct {
	repo    Repository
	gateway Gateway
	subs    Extender
	secret  string
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, gateway Gateway, subs Extender, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, subs: subs, secret: cfg.RazorpayKeySecret, logger: logger, now: time.Now}
}

// CreateOrder opens a Razorpay order for req.Amount rupees and remembers the plan it pays for.
func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (string, error) {
	amount := float64(req.Amount)
	if amount <= 0 {
		return "", common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter + "amount")
	}
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return "", common.ErrUnauthorized
	}
	paise := int64(math.Round(amount * 100))
	id, err := s.gateway.CreateOrder(ctx, paise, orderCurrency)
	if err != nil {
		if errors.Is(err, ErrGatewayDisabled) {
			return "", common.ErrBadRequest.WithMessage(common.MsgMissingAPIKey)
		}
		s.logger.Error("Failed to create order", zap.Float64("amount", amount), zap.Error(err))
		return "", common.ErrServiceUnavailable
	}
	order := &Order{
		OrderID:     id,
		CreatedBy:   database.UserRef(oid),
		AmountPaise: paise,
		Currency:    orderCurrency,
		Plan:        req.SelectedPlan,
		CreatedOn:   s.now().UTC(),
	}
	if err := s.repo.InsertOrder(ctx, order); err != nil {
		s.logger.Error("Failed to store order", zap.String("orderID", id), zap.Error(err))
		return "", common.ErrServiceUnavailable
	}
	return id, nil
}

// Capture verifies the checkout signature, records the payment and applies the plan stored
// with the order. Capturing the same payment again succeeds without applying the plan twice.
func (s *Service) Capture(ctx context.Context, userID string, req CaptureRequest) error {
	if !VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature, s.secret) {
		s.logger.Warn("Payment signature mismatch", zap.String("userID", userID), zap.String("orderID", req.RazorpayOrderID))
		return common.ErrUnauthorized.WithMessage(common.MsgErrorRazorpayVerification)
	}
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return common.ErrUnauthorized
	}
	logger := s.logger.With(zap.String("userID", userID), zap.String("orderID", req.RazorpayOrderID), zap.String("paymentID", req.RazorpayPaymentID))

	order, err := s.repo.FindOrder(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			logger.Warn("Capture for unknown order")
			return common.ErrBadRequest.WithMessage(common.MsgErrorUnknownOrder)
		}
		logger.Error("Failed to load order", zap.Error(err))
		return common.ErrServiceUnavailable
	}
	if order.CreatedBy.ID != oid {
		logger.Warn("Capture for another user's order")
		return common.ErrUnauthorized.WithMessage(common.MsgErrorRazorpayVerification)
	}
	req.SelectedPlan = order.Plan

	err = s.repo.Insert(ctx, &History{CreatedBy: database.UserRef(oid), CreatedOn: s.now().UTC(), PaymentDetails: req})
	if err != nil && !errors.Is(err, ErrDuplicatePayment) {
		logger.Error("Failed to record payment", zap.Error(err))
		return common.ErrServiceUnavailable
	}
	claimed, err := s.repo.ClaimApply(ctx, req.RazorpayPaymentID)
	if err != nil {
		logger.Error("Failed to claim payment", zap.Error(err))
		return common.ErrServiceUnavailable
	}
	if !claimed {
		logger.Info("Payment already applied")
		return nil
	}

	plan := order.Plan
	err = s.subs.Extend(ctx, userID, subscription.Purchase{
		ReportCount:   float64(plan.ReportPlan.Count),
		ChatCount:     int64(plan.ChatPlan.Count),
		DocumentBytes: plan.DocumentBytes(),
	})
	if err != nil {
		logger.Error("Failed to extend subscription", zap.Error(err))
		if rerr := s.repo.ReleaseApply(ctx, req.RazorpayPaymentID); rerr != nil {
			logger.Error("Failed to release payment for retry", zap.Error(rerr))
		}
		return common.ErrBadRequest.WithMessage(common.MsgErrorSubscriptionUpdate)
	}
	logger.Info("Payment captured")
	return nil
}

func (s *Service) History(ctx context.Context, userID string) ([]History, error) {
	oid, ok := database.ParseObjectID(userID)
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, oid)
}
