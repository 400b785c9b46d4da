package users

import (
	"context"

	"github.com/khanghh/tokenauth/model"
	"gorm.io/gorm"
)

// UserRepository takes conditions the way gorm's inline conditions do, a
// query string followed by its arguments.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	First(ctx context.Context, query string, args ...any) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Updates(ctx context.Context, columns map[string]any, query string, args ...any) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) First(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Updates(ctx context.Context, columns map[string]any, query string, args ...any) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.User{}).Where(query, args...).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
