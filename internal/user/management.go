package user

import (
	"context"
	"errors"
	"strings"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// AddChild creates a Child account under parent and mails it a link to set a password.
// It returns the child id and whether the mail went out.
func (s *Service) AddChild(ctx context.Context, parent *shared.User, req ChildUserRequest, origin string) (string, bool, error) {
	taken, err := s.emailTaken(ctx, req.Email)
	if err != nil {
		return "", false, err
	}
	if taken {
		return "", false, ErrDuplicateUser
	}

	parentID := parent.ID
	menu := req.Menu
	if menu == nil {
		menu = []int{}
	}
	child := &shared.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Role:         domain.RoleChild,
		CompanyName:  parent.CompanyName,
		Website:      parent.Website,
		Subscription: 1,
		IsActive:     true,
		ParentUserID: &parentID,
		CreatedOn:    s.now().UTC(),
		Permissions:  shared.Permissions{Menu: menu},
	}
	if err := s.create(ctx, child); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return "", false, ErrDuplicateUser
		}
		return "", false, err
	}
	sent := s.sendAccountInvite(ctx, child, origin)
	s.logger.Info("Child user created", zap.String("parentID", parent.HexID()), zap.String("userID", child.HexID()), zap.Bool("mailSent", sent))
	return child.HexID(), sent, nil
}

// ListChildren returns a page of the parent's active children.
func (s *Service) ListChildren(ctx context.Context, parentID string, pageIndex, pageSize int64) (ChildUsersPage, error) {
	users, total, err := s.repo.FindChildren(ctx, parentID, pageIndex*pageSize, pageSize)
	if err != nil {
		return ChildUsersPage{}, err
	}
	page := ChildUsersPage{
		Users:         make([]ChildUserSummary, 0, len(users)),
		TotalRecs:     total,
		TotalPageSize: common.TotalPages(total, pageSize),
	}
	for _, u := range users {
		page.Users = append(page.Users, ChildUserSummary{ID: u.HexID(), Name: u.Name, Email: u.Email})
	}
	return page, nil
}

// GetChild returns one child of the parent.
func (s *Service) GetChild(ctx context.Context, parentID, childID string) (*shared.User, error) {
	return s.repo.FindChild(ctx, parentID, childID)
}

// EditChild updates name, email and menus of a child.
func (s *Service) EditChild(ctx context.Context, parentID, childID string, req ChildUserRequest) error {
	child, err := s.repo.FindChild(ctx, parentID, childID)
	if err != nil {
		return err
	}
	if NormalizeEmail(req.Email) != child.Email {
		taken, err := s.emailTaken(ctx, req.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateUser
		}
	}
	fields := bson.M{"name": strings.TrimSpace(req.Name), "email": req.Email}
	if req.Menu != nil {
		fields["permissions.menu"] = req.Menu
	}
	return s.repo.Update(ctx, childID, fields)
}

// DeleteChild removes the child's stored files and then its record.
func (s *Service) DeleteChild(ctx context.Context, parentID, childID string) error {
	if _, err := s.repo.FindChild(ctx, parentID, childID); err != nil {
		return err
	}
	if err := s.store.DeletePrefix(ctx, childID); err != nil {
		s.logger.Error("Failed to delete child folder", zap.String("userID", childID), zap.Error(err))
		return err
	}
	if err := s.repo.Delete(ctx, childID); err != nil {
		return err
	}
	s.logger.Info("Child user deleted", zap.String("parentID", parentID), zap.String("userID", childID))
	return nil
}
