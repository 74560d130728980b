package user

import (
	"context"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/shared"
	"texplicit_backend/internal/subscription"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	adminDateLayout = "2006-01-02"
	bytesPerMB      = 1024 * 1024
)

// ListBaseUsers returns Personal and Professional users, newest first.
func (s *Service) ListBaseUsers(ctx context.Context) ([]*shared.User, error) {
	return s.repo.FindBaseUsers(ctx)
}

// ToggleStatus flips isActive and returns the new value.
func (s *Service) ToggleStatus(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	active := !u.IsActive
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return false, err
	}
	s.logger.Info("User status toggled", zap.String("userID", userID), zap.Bool("isActive", active))
	return active, nil
}

// AddOrUpdate updates the user named by UserID, or creates a new one when only an email is given.
// It returns the user id and whether a user was created.
func (s *Service) AddOrUpdate(ctx context.Context, req AdminUserRequest, origin string) (string, bool, error) {
	if req.UserID == "" && (req.Email == nil || strings.TrimSpace(*req.Email) == "") {
		return "", false, common.ErrMissingParameters
	}
	start, end, err := parseAdminDates(req.StartDate, req.EndDate)
	if err != nil {
		return "", false, err
	}

	if req.UserID != "" {
		existing, err := s.repo.FindByID(ctx, req.UserID)
		if err != nil {
			return "", false, err
		}
		if err := s.repo.Update(ctx, req.UserID, adminUpdateFields(req, existing, start, end)); err != nil {
			return "", false, err
		}
		s.logger.Info("Admin updated user", zap.String("userID", req.UserID))
		return req.UserID, false, nil
	}

	taken, err := s.emailTaken(ctx, *req.Email)
	if err != nil {
		return "", false, err
	}
	if taken {
		return "", false, ErrDuplicateEmail
	}

	now := s.now().UTC()
	u := &shared.User{
		Email:       *req.Email,
		Role:        domain.RolePersonal,
		IsActive:    true,
		CreatedOn:   now,
		Permissions: subscription.DefaultPermissions(nonEmpty(req.Menu), now, s.cfg.DefaultSubscriptionDays),
	}
	applyAdminProfile(u, req)
	applyAdminQuota(&u.Permissions, req, start, end)
	if err := s.create(ctx, u); err != nil {
		return "", false, err
	}
	s.sendAccountInvite(ctx, u, origin)
	s.logger.Info("Admin created user", zap.String("userID", u.HexID()))
	return u.HexID(), true, nil
}

func parseAdminDates(startRaw, endRaw string) (*time.Time, *time.Time, error) {
	parse := func(raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(adminDateLayout, raw)
		if err != nil {
			return nil, common.ErrBadRequest.WithDetails(map[string]string{"date": "dates must use YYYY-MM-DD"})
		}
		return &t, nil
	}
	start, err := parse(startRaw)
	if err != nil {
		return nil, nil, err
	}
	end, err := parse(endRaw)
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func nonEmpty(menu []int) []int {
	if len(menu) == 0 {
		return nil
	}
	return menu
}

func applyAdminProfile(u *shared.User, req AdminUserRequest) {
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.MobileNumber != nil {
		u.MobileNumber = *req.MobileNumber
	}
	if req.CompanyName != nil {
		u.CompanyName = *req.CompanyName
	}
	if req.Website != nil {
		u.Website = *req.Website
	}
	if req.Role != nil {
		u.Role = domain.Role(*req.Role)
	}
	if req.Subscription != nil {
		u.Subscription = *req.Subscription
	}
}

func applyAdminQuota(p *shared.Permissions, req AdminUserRequest, start, end *time.Time) {
	if start != nil {
		p.SubscriptionDuration.StartDate = *start
	}
	if end != nil {
		p.SubscriptionDuration.EndDate = *end
	}
	if req.DocumentSize != nil {
		p.Document.Allowed.DocumentSize = int64(*req.DocumentSize * bytesPerMB)
	}
	if req.ChatCount != nil {
		p.Chat.Allowed.ChatCount = *req.ChatCount
	}
	if req.ReportCount != nil {
		p.Report.Allowed[subscription.ReportTotalKey] = *req.ReportCount
	}
}

// adminUpdateFields builds the $set document of an admin edit. Quota fields are set
// individually so usage counters survive the edit.
func adminUpdateFields(req AdminUserRequest, existing *shared.User, start, end *time.Time) bson.M {
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil && *req.Email != "" {
		fields["email"] = *req.Email
	}
	if req.MobileNumber != nil {
		fields["mobileNumber"] = *req.MobileNumber
	}
	if req.CompanyName != nil {
		fields["companyName"] = *req.CompanyName
	}
	if req.Website != nil {
		fields["website"] = *req.Website
	}
	if req.Role != nil {
		fields["role"] = domain.Role(*req.Role)
	}
	if req.Subscription != nil {
		fields["subscription"] = *req.Subscription
	}
	if req.Menu != nil {
		fields["permissions.menu"] = req.Menu
	}
	if start != nil {
		fields["permissions.subscription_duration.start_date"] = *start
	} else if existing.Permissions.SubscriptionDuration == nil && end != nil {
		fields["permissions.subscription_duration.start_date"] = time.Now().UTC()
	}
	if end != nil {
		fields["permissions.subscription_duration.end_date"] = *end
	}
	if req.DocumentSize != nil {
		fields["permissions.document.allowed.document_size"] = int64(*req.DocumentSize * bytesPerMB)
	}
	if req.ChatCount != nil {
		fields["permissions.chat.allowed.chat_count"] = *req.ChatCount
	}
	if req.ReportCount != nil {
		fields["permissions.report.allowed."+subscription.ReportTotalKey] = *req.ReportCount
	}
	return fields
}
