package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
)

// UserRepository persists users and their linked external identities in Postgres.
// Uniqueness of email and of (provider, subject) is left to the database
// indexes; callers see violations as ErrConflict.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Identities").
		Where("email = ?", normalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, provider, subject string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Identities").
		Joins("JOIN external_identities ei ON ei.user_id = users.id").
		Where("ei.provider = ? AND ei.subject = ?", provider, subject).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Identities").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Insert creates the user and any identities it carries in one transaction.
// The id is assigned here when the caller left it empty.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)

	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		for i := range user.Identities {
			ident := &user.Identities[i]
			if ident.ID == uuid.Nil {
				ident.ID = uuid.New()
			}
			ident.UserID = user.ID
			if err := tx.Create(ident).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// Update writes the mutable columns of an existing user and inserts any
// identities that have not been persisted yet (zero id). The user id itself
// is never changed.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)

	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"name":          user.Name,
				"email":         user.Email,
				"password_hash": user.PasswordHash,
				"verified":      user.Verified,
				"last_login":    user.LastLogin,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for i := range user.Identities {
			ident := &user.Identities[i]
			if ident.ID != uuid.Nil {
				continue
			}
			ident.ID = uuid.New()
			ident.UserID = user.ID
			if err := tx.Create(ident).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}
