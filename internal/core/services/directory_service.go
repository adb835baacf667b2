package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
)

// listedRoles is the order ListUsers walks when no role filter is given.
var listedRoles = []domain.Role{domain.RoleAdmin, domain.RoleTechnician, domain.RoleUser}

// DirectoryService maintains the local user directory.
type DirectoryService struct {
	userRepo ports.UserRepository
	clock    clock.Clock
	logger   *slog.Logger
}

var _ ports.DirectoryService = (*DirectoryService)(nil)

func NewDirectoryService(userRepo ports.UserRepository, clk clock.Clock, logger *slog.Logger) ports.DirectoryService {
	return &DirectoryService{
		userRepo: userRepo,
		clock:    clk,
		logger:   logger.With("component", "directory_service"),
	}
}

// SyncSelf writes the caller's own entry. The role always comes from the
// identity, so nobody can promote themselves through their profile.
func (s *DirectoryService) SyncSelf(ctx context.Context, fullName, email string, actor *domain.Identity) (*domain.User, error) {
	if !actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	return s.save(ctx, domain.UserParams{
		ID:       actor.UserID,
		FullName: fullName,
		Email:    email,
		Role:     actor.Role,
	})
}

func (s *DirectoryService) GetSelf(ctx context.Context, actor *domain.Identity) (*domain.User, error) {
	if !actor.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	return s.userRepo.GetByID(ctx, actor.UserID)
}

func (s *DirectoryService) UpsertUser(ctx context.Context, params ports.UpsertUserParams) (*domain.User, error) {
	if err := requireAdmin(params.Actor); err != nil {
		return nil, err
	}

	user, err := s.save(ctx, domain.UserParams{
		ID:       params.UserID,
		FullName: params.FullName,
		Email:    params.Email,
		Role:     params.Role,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "directory entry saved",
		"user_id", user.ID,
		"role", user.Role,
		"actor_id", params.Actor.UserID,
	)
	return user, nil
}

// ListUsers returns entries oldest first, grouped admin, technician, user
// when role is nil.
func (s *DirectoryService) ListUsers(ctx context.Context, role *domain.Role, actor *domain.Identity) ([]*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	roles := listedRoles
	if role != nil {
		if !role.IsValid() {
			errs := apperrors.NewValidationErrors()
			errs.Add("role", "Role must be one of: user, technician, admin")
			return nil, errs
		}
		roles = []domain.Role{*role}
	}

	users := make([]*domain.User, 0)
	for _, r := range roles {
		batch, err := s.userRepo.ListByRole(ctx, r)
		if err != nil {
			return nil, err
		}
		users = append(users, batch...)
	}
	return users, nil
}

func (s *DirectoryService) save(ctx context.Context, params domain.UserParams) (*domain.User, error) {
	user, err := domain.NewUser(params)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = s.clock.Now()
	return s.userRepo.Upsert(ctx, user)
}

func requireAdmin(actor *domain.Identity) error {
	if !actor.Valid() {
		return apperrors.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.ErrForbidden
	}
	return nil
}
