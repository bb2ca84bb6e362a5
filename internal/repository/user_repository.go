package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/geoprofile/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository is the account record store
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	CreateWithAccess(ctx context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, u *model.User) error
	UpdateWithAccess(ctx context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error
	Delete(ctx context.Context, id uint) error
	FindNear(ctx context.Context, p model.GeoPoint, meters float64) ([]model.User, error)
	FindByBirthday(ctx context.Context, month time.Month, days []int) ([]model.User, error)
	PermissionNames(ctx context.Context, userID uint) ([]string, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a gorm backed account store
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	return insertUser(r.db.WithContext(ctx), u)
}

// CreateWithAccess inserts u and assigns its groups and direct permissions in
// one transaction. An unknown id rolls the insert back.
func (r *userRepository) CreateWithAccess(ctx context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error {
	if groupIDs == nil && permissionIDs == nil {
		return r.Create(ctx, u)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertUser(tx, u); err != nil {
			return err
		}
		return setAccess(tx, u, groupIDs, permissionIDs)
	})
}

func insertUser(db *gorm.DB, u *model.User) error {
	err := db.Omit(clause.Associations).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Preload("Groups").
		Preload("UserPermissions").
		First(&u, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// EmailTaken reports whether another account (not excludeID) already uses email
func (r *userRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("LOWER(email) = LOWER(?)", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns one page of accounts ordered by id together with the total count
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var (
		users []model.User
		total int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update writes every column of u except the key and creation timestamp
func (r *userRepository) Update(ctx context.Context, u *model.User) error {
	return updateUser(r.db.WithContext(ctx), u)
}

// UpdateWithAccess writes u and replaces its groups and direct permissions in
// one transaction; a nil list is left unchanged.
func (r *userRepository) UpdateWithAccess(ctx context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error {
	if groupIDs == nil && permissionIDs == nil {
		return r.Update(ctx, u)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateUser(tx, u); err != nil {
			return err
		}
		return setAccess(tx, u, groupIDs, permissionIDs)
	})
}

func updateUser(db *gorm.DB, u *model.User) error {
	result := db.
		Model(u).
		Select("*").
		Omit("id", "date_joined", clause.Associations).
		Updates(u)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func setAccess(tx *gorm.DB, u *model.User, groupIDs, permissionIDs *[]uint) error {
	if groupIDs != nil {
		var groups []model.Group
		if len(*groupIDs) > 0 {
			if err := tx.Find(&groups, *groupIDs).Error; err != nil {
				return err
			}
			if len(groups) != len(unique(*groupIDs)) {
				return ErrUnknownGroup
			}
		}
		if err := tx.Model(u).Omit("Groups.*").Association("Groups").Replace(groups); err != nil {
			return fmt.Errorf("replace groups: %w", err)
		}
		u.Groups = groups
	}
	if permissionIDs != nil {
		var perms []model.Permission
		if len(*permissionIDs) > 0 {
			if err := tx.Find(&perms, *permissionIDs).Error; err != nil {
				return err
			}
			if len(perms) != len(unique(*permissionIDs)) {
				return ErrUnknownPermission
			}
		}
		if err := tx.Model(u).Omit("UserPermissions.*").Association("UserPermissions").Replace(perms); err != nil {
			return fmt.Errorf("replace permissions: %w", err)
		}
		u.UserPermissions = perms
	}
	return nil
}

// Delete removes the account; the database cascades to every related record
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindNear returns accounts whose home address lies strictly closer than meters to p
func (r *userRepository) FindNear(ctx context.Context, p model.GeoPoint, meters float64) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where(fmt.Sprintf("ST_Distance(home_address, ST_SetSRID(ST_MakePoint(?, ?), %d)::geography) < ?", model.SRID),
			p.Lng, p.Lat, meters).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// FindByBirthday returns accounts born in month on one of days
func (r *userRepository) FindByBirthday(ctx context.Context, month time.Month, days []int) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("EXTRACT(MONTH FROM date_of_birth) = ? AND EXTRACT(DAY FROM date_of_birth) IN ?", int(month), days).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

const permissionNamesQuery = `
SELECT p.app_label || '.' || p.codename AS name
FROM permissions p
JOIN user_user_permissions up ON up.permission_id = p.id
WHERE up.user_id = @user
UNION
SELECT p.app_label || '.' || p.codename AS name
FROM permissions p
JOIN group_permissions gp ON gp.permission_id = p.id
JOIN user_groups ug ON ug.group_id = gp.group_id
WHERE ug.user_id = @user`

// PermissionNames returns the union of direct and group permissions as "app.codename"
func (r *userRepository) PermissionNames(ctx context.Context, userID uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Raw(permissionNamesQuery, map[string]interface{}{"user": userID}).
		Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

func unique(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
