package services

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "coffeeshop/internal/errors"
	"coffeeshop/internal/models"
	"coffeeshop/internal/pagination"
)

// userService handles the credential store.
type userService struct {
	db   *gorm.DB
	opts Options
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, opts Options) UserServicer {
	return &userService{db: db, opts: opts.withDefaults()}
}

// Password length bounds. bcrypt rejects secrets longer than 72 bytes.
const (
	MinPasswordChars = 8
	MaxPasswordBytes = 72
)

// ValidatePasswordStrength enforces the registration password policy.
// Login deliberately does not apply it.
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordChars {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "password must be at most 72 bytes")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "password must contain at least one letter and one digit")
	}
	return nil
}

// CreateUser registers a new local user with the default role.
func (s *userService) CreateUser(ctx context.Context, name, email, password, phoneNumber string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || !strings.Contains(email, "@") {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and a valid email are required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	digest, err := s.opts.Hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Name:           name,
		Email:          email,
		PasswordDigest: &digest,
		PhoneNumber:    strings.TrimSpace(phoneNumber),
		Role:           models.RoleUser,
		AuthProvider:   models.AuthProviderLocal,
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// ListUsers returns a page of users ordered by creation, optionally filtered by role.
func (s *userService) ListUsers(ctx context.Context, page pagination.PageRequest, role *models.Role) (*pagination.PageResponse[models.User], error) {
	page.Defaults()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	base := s.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		base = base.Where("role = ?", *role)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var users []models.User
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(users, page.Page, page.PageSize, total)
	return &resp, nil
}

// UpdateRole changes a user's role. The last admin cannot be demoted and an
// admin cannot demote themselves.
func (s *userService) UpdateRole(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown role")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID, &user); err != nil {
			return err
		}
		if user.Role == models.RoleAdmin && role != models.RoleAdmin {
			if actorID == userID {
				return apperrors.WithMessage(apperrors.ErrForbidden, "You cannot remove your own admin role")
			}
			if err := ensureAnotherAdmin(tx, userID); err != nil {
				return err
			}
		}
		user.Role = role
		return tx.Model(&user).Update("role", role).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &user, nil
}

// DeleteUser removes a user. Admins cannot delete themselves or the last admin.
func (s *userService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return apperrors.ErrCannotDeleteSelf
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockUser(tx, userID, &user); err != nil {
			return err
		}
		if user.Role == models.RoleAdmin {
			if err := ensureAnotherAdmin(tx, userID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserSecurity{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	return asAppError(err)
}

func lockUser(tx *gorm.DB, userID string, user *models.User) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return err
}

// ensureAnotherAdmin locks the other admin rows so two concurrent demotions
// cannot both see a spare admin.
func ensureAnotherAdmin(tx *gorm.DB, excludeID string) error {
	var others []models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("role = ? AND id <> ?", models.RoleAdmin, excludeID).
		Find(&others).Error
	if err != nil {
		return err
	}
	if len(others) == 0 {
		return apperrors.ErrLastAdmin
	}
	return nil
}

func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
