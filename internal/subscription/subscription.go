// Package subscription decides whether a user may still chat, generate reports or upload
// documents, and records what they consume.
package subscription

import (
	"context"
	"time"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/shared"

	"go.uber.org/zap"
)

// Default allowances given to new accounts and to accounts whose quota record is missing.
const (
	DefaultChatCount         = 50
	DefaultReportTotal       = 5
	DefaultReportPerType     = 2
	DefaultDocumentSizeBytes = 100 * 1024 * 1024
	ReportTotalKey           = "total"
)

// Purchase is what a paid plan adds to a subscription.
type Purchase struct {
	ReportCount   float64
	ChatCount     int64
	DocumentBytes int64
}

// Store persists quota changes. All increments are atomic on the user record.
type Store interface {
	SetPermissions(ctx context.Context, userID string, perms shared.Permissions) error
	IncrementChatUsage(ctx context.Context, userID string) error
	IncrementReportUsage(ctx context.Context, userID string, reportType domain.ReportType, weight float64) error
	IncrementDocumentUsage(ctx context.Context, userID string, bytes int64) error
	ApplyPurchase(ctx context.Context, userID string, p Purchase, extendBy time.Duration) error
}

// DefaultMenus is every menu except Admin.
func DefaultMenus() []int {
	out := make([]int, 0, 9)
	for _, e := range domain.MenuItemList() {
		if domain.MenuItem(e.ID) != domain.MenuAdmin {
			out = append(out, e.ID)
		}
	}
	return out
}

// DefaultPermissions builds the permissions of a fresh account. A nil menu selects DefaultMenus.
func DefaultPermissions(menu []int, now time.Time, days int) shared.Permissions {
	if menu == nil {
		menu = DefaultMenus()
	}
	allowed := map[string]float64{ReportTotalKey: DefaultReportTotal}
	used := map[string]float64{ReportTotalKey: 0}
	for _, t := range domain.ReportTypes {
		allowed[string(t)] = DefaultReportPerType
		used[string(t)] = 0
	}
	start := now.UTC()
	return shared.Permissions{
		Menu: menu,
		SubscriptionDuration: &shared.SubscriptionDuration{
			StartDate: start,
			EndDate:   start.AddDate(0, 0, days),
		},
		Chat: &shared.ChatQuota{
			Allowed: shared.ChatCount{ChatCount: DefaultChatCount},
		},
		Report: &shared.ReportQuota{Allowed: allowed, Used: used},
		Document: &shared.DocumentQuota{
			Allowed: shared.DocumentSize{DocumentSize: DefaultDocumentSizeBytes},
		},
	}
}

// DurationActive reports whether now falls inside the subscription window.
func DurationActive(u *shared.User, now time.Time) bool {
	d := u.Permissions.SubscriptionDuration
	if d == nil || d.StartDate.IsZero() || d.EndDate.IsZero() {
		return false
	}
	return !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// ChatAvailable reports whether another chat answer fits the allowance.
func ChatAvailable(u *shared.User) bool {
	c := u.Permissions.Chat
	return c != nil && c.Used.ChatCount < c.Allowed.ChatCount
}

// ReportAvailable requires both the total and the per-type allowance to have room left.
func ReportAvailable(u *shared.User, t domain.ReportType) bool {
	r := u.Permissions.Report
	if r == nil {
		return false
	}
	key := string(t)
	return r.Allowed[ReportTotalKey]-r.Used[ReportTotalKey] > 0 && r.Allowed[key]-r.Used[key] > 0
}

// DocumentAvailable reports whether size more bytes fit the storage allowance.
func DocumentAvailable(u *shared.User, size int64) bool {
	d := u.Permissions.Document
	return d != nil && d.Used.DocumentSize+size <= d.Allowed.DocumentSize
}

// Service applies the checks against stored users, initialising missing quota records.
type Service struct {
	store  Store
	days   int
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, cfg *config.Config, logger *zap.Logger) *Service {
	days := cfg.DefaultSubscriptionDays
	if days <= 0 {
		days = 180
	}
	return &Service{store: store, days: days, logger: logger, now: time.Now}
}

// initialise resets a user's quota record to the defaults, keeping their menus.
func (s *Service) initialise(ctx context.Context, u *shared.User) bool {
	perms := DefaultPermissions(u.Permissions.Menu, s.now(), s.days)
	if err := s.store.SetPermissions(ctx, u.HexID(), perms); err != nil {
		s.logger.Error("Failed to initialise permissions", zap.String("userID", u.HexID()), zap.Error(err))
		return false
	}
	s.logger.Info("Initialised default permissions", zap.String("userID", u.HexID()))
	u.Permissions = perms
	return true
}

// CheckDuration is false for a nil user and true after initialising a missing window.
func (s *Service) CheckDuration(ctx context.Context, u *shared.User) bool {
	if u == nil {
		return false
	}
	if u.Permissions.SubscriptionDuration == nil {
		return s.initialise(ctx, u)
	}
	return DurationActive(u, s.now())
}

// CheckChat is true when a chat answer may be produced.
func (s *Service) CheckChat(ctx context.Context, u *shared.User) bool {
	if u == nil {
		return false
	}
	if u.Permissions.Chat == nil {
		return s.initialise(ctx, u)
	}
	return ChatAvailable(u)
}

// CheckReport is true when a report of type t may be generated.
func (s *Service) CheckReport(ctx context.Context, u *shared.User, t domain.ReportType) bool {
	if u == nil {
		return false
	}
	if u.Permissions.Report == nil {
		return s.initialise(ctx, u)
	}
	return ReportAvailable(u, t)
}

// CheckDocument is true when size more bytes may be uploaded.
func (s *Service) CheckDocument(ctx context.Context, u *shared.User, size int64) bool {
	if u == nil {
		return false
	}
	if u.Permissions.Document == nil {
		if !s.initialise(ctx, u) {
			return false
		}
	}
	return DocumentAvailable(u, size)
}

func (s *Service) RecordChat(ctx context.Context, userID string) {
	if err := s.store.IncrementChatUsage(ctx, userID); err != nil {
		s.logger.Error("Failed to record chat usage", zap.String("userID", userID), zap.Error(err))
	}
}

func (s *Service) RecordReport(ctx context.Context, userID string, t domain.ReportType) {
	if err := s.store.IncrementReportUsage(ctx, userID, t, t.UsageWeight()); err != nil {
		s.logger.Error("Failed to record report usage", zap.String("userID", userID), zap.String("reportType", string(t)), zap.Error(err))
	}
}

func (s *Service) RecordDocument(ctx context.Context, userID string, bytes int64) {
	if bytes <= 0 {
		return
	}
	if err := s.store.IncrementDocumentUsage(ctx, userID, bytes); err != nil {
		s.logger.Error("Failed to record document usage", zap.String("userID", userID), zap.Int64("bytes", bytes), zap.Error(err))
	}
}

// Extend adds a purchased plan to the user's allowances and pushes the end date out by the
// default subscription length, counted from today when the plan had already lapsed.
func (s *Service) Extend(ctx context.Context, userID string, p Purchase) error {
	return s.store.ApplyPurchase(ctx, userID, p, time.Duration(s.days)*24*time.Hour)
}
