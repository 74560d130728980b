// File: internal/menu/service.go
package menu

import (
	"context"
	"strconv"
	"strings"

	"texplicit_backend/internal/domain"
	"texplicit_backend/internal/platform/database"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Service defines the interface for menu lookups.
type Service interface {
	GetMenus(ctx context.Context, ids []string) ([]MenuResponse, error)
	GetMenuNames(ctx context.Context, refs []string) ([]MenuName, error)
	EnsureDefaults(ctx context.Context) error
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new menu service.
func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger}
}

// GetMenus returns the menus with the given ids, or every menu except Admin when ids is empty.
func (s *service) GetMenus(ctx context.Context, ids []string) ([]MenuResponse, error) {
	var (
		menus []Menu
		err   error
	)
	if len(ids) > 0 {
		menus, err = s.repo.FindByIDs(ctx, database.ParseObjectIDs(ids))
	} else {
		menus, err = s.repo.FindAllExcept(ctx, int(domain.MenuAdmin))
	}
	if err != nil {
		s.logger.Error("Failed to load menus", zap.Error(err))
		return nil, err
	}
	out := make([]MenuResponse, 0, len(menus))
	for i := range menus {
		out = append(out, ToMenuResponse(&menus[i]))
	}
	return out, nil
}

// GetMenuNames resolves menu references. A reference is either a menu document id or a
// menu index as stored in user permissions.
func (s *service) GetMenuNames(ctx context.Context, refs []string) ([]MenuName, error) {
	var indexes []int
	var hexes []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if n, err := strconv.Atoi(ref); err == nil {
			indexes = append(indexes, n)
			continue
		}
		hexes = append(hexes, ref)
	}

	names := []MenuName{}
	if len(hexes) > 0 {
		menus, err := s.repo.FindByIDs(ctx, database.ParseObjectIDs(hexes))
		if err != nil {
			return nil, err
		}
		for _, m := range menus {
			names = append(names, MenuName{ID: m.ID.Hex(), Name: m.Name})
		}
	}
	if len(indexes) > 0 {
		menus, err := s.repo.FindByIndexes(ctx, indexes)
		if err != nil {
			return nil, err
		}
		found := make(map[int]bool, len(menus))
		for _, m := range menus {
			found[m.Index] = true
			names = append(names, MenuName{ID: strconv.Itoa(m.Index), Name: m.Name})
		}
		for _, idx := range indexes {
			if !found[idx] {
				names = append(names, MenuName{ID: strconv.Itoa(idx), Name: domain.MenuItem(idx).Name()})
			}
		}
	}
	return names, nil
}

// EnsureDefaults seeds MENU_MASTER from the MenuItem enum when the collection is empty.
func (s *service) EnsureDefaults(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	menus := defaultMenus()
	for i := range menus {
		menus[i].Slug = slug.Make(menus[i].Name)
	}
	if err := s.repo.InsertMany(ctx, menus); err != nil {
		return err
	}
	s.logger.Info("Seeded default menus", zap.Int("count", len(menus)))
	return nil
}
