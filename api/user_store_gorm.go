package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/slogging"
	"github.com/unimak/dftrack/internal/unicodecheck"
)

// invalidCredentialsMessage is shared by unknown users and wrong passwords
const invalidCredentialsMessage = "invalid username and/or password"

// UserStore defines the account operations used by the auth handlers
type UserStore interface {
	Create(ctx context.Context, username, password, language, role string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	SetLanguage(ctx context.Context, id uint, language string) (*models.User, error)
}

// GormUserStore implements UserStore using GORM for cross-database support
type GormUserStore struct {
	db         *gorm.DB
	bcryptCost int
	// dummyHash is compared against when the username is unknown
	dummyHash []byte
	logger    *slogging.Logger
}

// NewGormUserStore creates a new GORM-backed user store
func NewGormUserStore(db *gorm.DB, bcryptCost int) *GormUserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("unimak-placeholder"), bcryptCost)
	return &GormUserStore{
		db:         db,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		logger:     slogging.Get(),
	}
}

// Create registers an account with a bcrypt password hash
func (s *GormUserStore) Create(ctx context.Context, username, password, language, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, InvalidInputError("must provide username")
	}
	if !unicodecheck.ValidIdentifier(username) {
		return nil, InvalidInputError("username contains invisible or unsupported characters")
	}
	if password == "" {
		return nil, InvalidInputError("must provide password")
	}
	if len(password) > 72 {
		return nil, InvalidInputError("password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Language:     language,
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, InvalidInputError("username already exists")
		}
		if errors.Is(err, models.ErrInvalidUser) {
			return nil, InvalidInputError(err.Error())
		}
		s.logger.Error("failed to create user: %v", err)
		return nil, ServerError(genericErrorMessage)
	}

	s.logger.Info("user registered: id=%d, username=%s, role=%s", user.ID, user.Username, user.Role)
	return &user, nil
}

// Authenticate returns the user when the password matches. Unknown users and
// wrong passwords produce the same error.
func (s *GormUserStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, InvalidInputError(invalidCredentialsMessage)
		}
		s.logger.Error("failed to load user %q: %v", unicodecheck.SanitizeForLogging(username), err)
		return nil, ServerError(genericErrorMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, InvalidInputError(invalidCredentialsMessage)
	}
	return &user, nil
}

// Get retrieves a user by id
func (s *GormUserStore) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(fmt.Sprintf("user not found: %d", id))
		}
		s.logger.Error("failed to get user %d: %v", id, err)
		return nil, ServerError(genericErrorMessage)
	}
	return &user, nil
}

// SetLanguage stores the preferred language of a user
func (s *GormUserStore) SetLanguage(ctx context.Context, id uint, language string) (*models.User, error) {
	if !models.IsSupportedLanguage(language) {
		return nil, InvalidInputError(fmt.Sprintf("unsupported language: %s", language))
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Language = language
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		s.logger.Error("failed to update language of user %d: %v", id, err)
		return nil, ServerError(genericErrorMessage)
	}
	return user, nil
}
