package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/khanghh/tokenauth/internal/database"
	"github.com/khanghh/tokenauth/model"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Email        string
	PasswordHash string
	IsSuperuser  bool
}

type UserService struct {
	userRepo UserRepository
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.First(ctx, "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.First(ctx, "email = ?", NormalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) CreateUser(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	user := model.User{
		Email:       NormalizeEmail(opts.Email),
		Password:    opts.PasswordHash,
		IsActive:    true,
		IsSuperuser: opts.IsSuperuser,
	}
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	updates := map[string]any{
		"last_login": at,
	}
	affected, err := s.userRepo.Updates(ctx, updates, "id = ?", userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBlocked blocks or unblocks the user with the given email.
func (s *UserService) SetBlocked(ctx context.Context, email string, blocked bool) error {
	updates := map[string]any{
		"blocked_at": nil,
	}
	if blocked {
		updates["blocked_at"] = time.Now()
	}
	affected, err := s.userRepo.Updates(ctx, updates, "email = ?", NormalizeEmail(email))
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}
