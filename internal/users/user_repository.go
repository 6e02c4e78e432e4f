package users

import (
	"context"
	"time"

	"github.com/khanghh/blogapi/model"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type UserRepository interface {
	FindByID(ctx context.Context, userID uint64) (*model.User, error)
	FindByIDFresh(ctx context.Context, userID uint64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByUsernameOrEmail(ctx context.Context, username string, email string) ([]*model.User, error)
	Create(ctx context.Context, user *model.User) error
	SetEmailVerified(ctx context.Context, userID uint64, verifiedAt time.Time) (int64, error)
	UpdateColumns(ctx context.Context, userID uint64, columns map[string]any) error
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) FindByID(ctx context.Context, userID uint64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	return &user, err
}

// FindByIDFresh reads the user from the primary database, bypassing replicas.
func (r *userRepository) FindByIDFresh(ctx context.Context, userID uint64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Where("id = ?", userID).First(&user).Error
	return &user, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return &user, err
}

func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username string, email string) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).Or("email = ?", email).Find(&users).Error
	return users, err
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) SetEmailVerified(ctx context.Context, userID uint64, verifiedAt time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND email_verified_at IS NULL", userID).
		Update("email_verified_at", verifiedAt)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) UpdateColumns(ctx context.Context, userID uint64, columns map[string]any) error {
	ret := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(columns)
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
