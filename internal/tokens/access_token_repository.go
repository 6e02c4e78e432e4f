package tokens

import (
	"context"
	"time"

	"github.com/khanghh/blogapi/model"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type accessTokenRepository struct {
	db *gorm.DB
}

func (r *accessTokenRepository) Transaction(ctx context.Context, fn func(repo AccessTokenRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewAccessTokenRepository(tx))
	})
}

func (r *accessTokenRepository) Create(ctx context.Context, token *model.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *accessTokenRepository) FindByID(ctx context.Context, tokenID string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := r.db.WithContext(ctx).Where("id = ?", tokenID).First(&token).Error
	return &token, err
}

// FindByIDFresh reads the record from the primary database, bypassing replicas.
func (r *accessTokenRepository) FindByIDFresh(ctx context.Context, tokenID string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Where("id = ?", tokenID).First(&token).Error
	return &token, err
}

// Revoke sets revoked_at only if the record is still active and returns the
// number of rows changed. Zero means the record is missing or was already
// revoked by someone else.
func (r *accessTokenRepository) Revoke(ctx context.Context, tokenID string, revokedAt time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.AccessToken{}).
		Where("id = ? AND revoked_at IS NULL", tokenID).
		Update("revoked_at", revokedAt)
	return ret.RowsAffected, ret.Error
}

func (r *accessTokenRepository) Delete(ctx context.Context, tokenID string) error {
	return r.db.WithContext(ctx).Where("id = ?", tokenID).Delete(&model.AccessToken{}).Error
}

func (r *accessTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.AccessToken{})
	return ret.RowsAffected, ret.Error
}

func NewAccessTokenRepository(db *gorm.DB) AccessTokenRepository {
	return &accessTokenRepository{db: db}
}
