package repository

import (
	"context"

	"gorm.io/gorm"
)

// OwnedStore is the store for records that belong to exactly one account.
// Listings are newest first.
type OwnedStore[T any] interface {
	ListByUser(ctx context.Context, userID uint) ([]T, error)
	Get(ctx context.Context, id uint) (*T, error)
	Create(ctx context.Context, rec *T) error
	Save(ctx context.Context, rec *T) error
	Delete(ctx context.Context, rec *T) error
}

type ownedRepository[T any] struct {
	db *gorm.DB
}

// NewOwnedRepository creates a gorm backed store for one related entity type
func NewOwnedRepository[T any](db *gorm.DB) OwnedStore[T] {
	return &ownedRepository[T]{db: db}
}

func (r *ownedRepository[T]) ListByUser(ctx context.Context, userID uint) ([]T, error) {
	var recs []T
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *ownedRepository[T]) Get(ctx context.Context, id uint) (*T, error) {
	var rec T
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *ownedRepository[T]) Create(ctx context.Context, rec *T) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r *ownedRepository[T]) Save(ctx context.Context, rec *T) error {
	result := r.db.WithContext(ctx).Model(rec).Select("*").Omit("id").Updates(rec)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ownedRepository[T]) Delete(ctx context.Context, rec *T) error {
	result := r.db.WithContext(ctx).Delete(rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
