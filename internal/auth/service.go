package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/readilyreads/server/internal/config"
	"github.com/readilyreads/server/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// TokenPair is the access/refresh pair handed to clients on registration,
// login, and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ProfileUpdate holds a partial profile update. Nil fields are untouched.
type ProfileUpdate struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
}

// Service handles registration, authentication, and token issuance.
type Service struct {
	db     *gorm.DB
	config config.Auth
	secret []byte
}

// NewService creates a new authentication service. The signing secret comes
// from config; callers generate one beforehand when it is unset.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		config: cfg,
		secret: []byte(cfg.JWTSecret),
	}
}

// Register creates a new user with a bcrypt-hashed password and an empty
// profile, in one transaction. Nothing is created when validation fails.
func (s *Service) Register(username, email, password, password2 string) (*entities.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if password != password2 {
		return nil, ErrPasswordMismatch
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// Email is optional; validate only when provided (RFC 5321 length limit)
	if email != "" && (len(email) > 254 || !emailPattern.MatchString(email)) {
		return nil, ErrEmailInvalid
	}

	var existing entities.User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&entities.Profile{UserID: user.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate validates credentials and returns the user.
func (s *Service) Authenticate(username, password string) (*entities.User, error) {
	var user entities.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	now := time.Now()
	s.db.Model(&user).Update("last_login_at", now)

	return &user, nil
}

// IssueTokens creates a fresh access/refresh pair for the user. The refresh
// token is stored hashed; only its plaintext leaves the server.
func (s *Service) IssueTokens(user *entities.User) (*TokenPair, error) {
	access, err := SignJWT(s.secret, user.ID, user.Username, s.config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	plaintext, hash, err := GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	record := &entities.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.config.RefreshTokenTTL),
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &TokenPair{Access: access, Refresh: plaintext}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The used token is
// revoked (rotation); expired, revoked, or unknown tokens yield
// ErrInvalidToken or ErrTokenExpired and issue nothing.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	var record entities.RefreshToken
	err := s.db.Where("token_hash = ?", HashToken(refreshToken)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if record.Revoked {
		return nil, ErrInvalidToken
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.GetUserByID(record.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&record).Update("revoked", true).Error; err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.IssueTokens(user)
}

// ValidateAccess parses an access token and returns its claims.
func (s *Service) ValidateAccess(token string) (*Claims, error) {
	claims, err := ParseJWT(s.secret, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetUserByID retrieves a user with their profile.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	err := s.db.Preload("Profile").First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update to the user's email and profile.
func (s *Service) UpdateProfile(userID uint, update ProfileUpdate) (*entities.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if update.Email != nil {
		email := *update.Email
		if email != "" && (len(email) > 254 || !emailPattern.MatchString(email)) {
			return nil, ErrEmailInvalid
		}
		if err := s.db.Model(user).Update("email", email).Error; err != nil {
			return nil, err
		}
	}

	fields := map[string]any{}
	if update.FirstName != nil {
		fields["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["last_name"] = *update.LastName
	}
	if update.Bio != nil {
		fields["bio"] = *update.Bio
	}
	if len(fields) > 0 {
		err = s.db.Model(&entities.Profile{}).
			Where("user_id = ?", userID).
			Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}

	return s.GetUserByID(userID)
}

// PurgeExpiredTokens deletes refresh tokens that are expired or revoked.
// Returns the number of deleted rows.
func (s *Service) PurgeExpiredTokens() (int64, error) {
	result := s.db.Where("expires_at < ? OR revoked = ?", time.Now(), true).
		Delete(&entities.RefreshToken{})
	return result.RowsAffected, result.Error
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers() (bool, error) {
	var count int64
	err := s.db.Model(&entities.User{}).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
