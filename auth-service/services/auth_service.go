package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/database/models/auth"
	"transparencia-backend/shared/logger"
	utils "transparencia-backend/shared/utils/auth"
)

// TokenRevoker denies access tokens before they expire
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
}

// ClientInfo identifies the client a refresh token is bound to
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Credentials of a login attempt. TOTPCode is only checked for users with
// two-factor enabled.
type Credentials struct {
	Email    string
	Password string
	TOTPCode string
}

// Session is the token pair handed to a client
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *UserProfile `json:"user"`
}

// UserProfile is a user with its flattened roles and permissions
type UserProfile struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	PhotoURL     string     `json:"photo_url"`
	Area         string     `json:"area"`
	DependencyID *uint      `json:"dependency_id"`
	Active       bool       `json:"active"`
	TOTPEnabled  bool       `json:"totp_enabled"`
	LastAccessAt *time.Time `json:"last_access_at"`
	Roles        []string   `json:"roles"`
	Permissions  []string   `json:"permissions"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewUserProfile flattens a user loaded with roles and permissions
func NewUserProfile(u *models.User) *UserProfile {
	return &UserProfile{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		FullName:     u.FullName(),
		Phone:        u.Phone,
		PhotoURL:     u.PhotoURL,
		Area:         u.Area,
		DependencyID: u.DependencyID,
		Active:       u.Active,
		TOTPEnabled:  u.TOTPEnabled,
		LastAccessAt: u.LastAccessAt,
		Roles:        u.RoleNames(),
		Permissions:  u.PermissionCodes(),
		CreatedAt:    u.CreatedAt,
	}
}

// AuthService authenticates users and manages their refresh tokens
type AuthService struct {
	db         *gorm.DB
	issuer     *utils.TokenIssuer
	refreshTTL time.Duration
	totpIssuer string
	revoker    TokenRevoker
	now        func() time.Time
}

// NewAuthService creates the service. revoker may be nil, in which case
// logout only revokes the refresh token.
func NewAuthService(db *gorm.DB, issuer *utils.TokenIssuer, refreshTTL time.Duration, totpIssuer string, revoker TokenRevoker) *AuthService {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		db:         db,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		totpIssuer: totpIssuer,
		revoker:    revoker,
		now:        time.Now,
	}
}

// Login checks the credentials and opens a session
func (s *AuthService) Login(ctx context.Context, cred Credentials, client ClientInfo) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(cred.Email))

	var user models.User
	err := withRoles(s.db.WithContext(ctx)).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.L().Warn("login failed", "email", email, "reason", "unknown user", "ip", client.IP)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !utils.CheckPassword(user.Password, cred.Password) {
		logger.L().Warn("login failed", "email", email, "reason", "bad password", "ip", client.IP)
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}
	if user.TOTPEnabled && user.TOTPSecret != nil {
		if cred.TOTPCode == "" {
			return nil, ErrTOTPRequired
		}
		if !utils.ValidateTOTP(cred.TOTPCode, *user.TOTPSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_access_at", now).Error; err != nil {
		return nil, fmt.Errorf("update last access: %w", err)
	}
	user.LastAccessAt = &now

	session, err := s.openSession(ctx, &user, client)
	if err != nil {
		return nil, err
	}
	logger.L().Info("user logged in", "user_id", user.ID, "ip", client.IP)
	return session, nil
}

// Refresh exchanges a usable refresh token for a new pair. The presented
// token is revoked.
func (s *AuthService) Refresh(ctx context.Context, token string, client ClientInfo) (*Session, error) {
	var session *Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored auth.RefreshToken
		if err := tx.Where("token = ?", token).First(&stored).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		now := s.now()
		if !stored.Usable(now) {
			return ErrInvalidRefresh
		}

		res := tx.Model(&auth.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		// lost a race with a concurrent refresh of the same token
		if res.RowsAffected == 0 {
			return ErrInvalidRefresh
		}

		var user models.User
		if err := withRoles(tx).Where("id = ?", stored.UserID).First(&user).Error; err != nil {
			return err
		}
		if !user.Active {
			return ErrInactiveUser
		}

		var err error
		session, err = s.issueSession(tx, &user, client)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Logout revokes the refresh token and, when a revoker is configured, the
// access token identified by jti
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken, jti string, accessExpiresAt time.Time) error {
	if refreshToken != "" {
		err := s.db.WithContext(ctx).Model(&auth.RefreshToken{}).
			Where("token = ? AND user_id = ? AND revoked_at IS NULL", refreshToken, userID).
			Update("revoked_at", s.now()).Error
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	if s.revoker != nil && jti != "" {
		if err := s.revoker.RevokeToken(ctx, jti, accessExpiresAt); err != nil {
			logger.L().Warn("access token revocation failed", "user_id", userID, "error", err)
		}
	}
	logger.L().Info("user logged out", "user_id", userID)
	return nil
}

// RevokeAll revokes every refresh token of a user
func (s *AuthService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&auth.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now()).Error
}

// Profile returns the user with roles and permissions
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewUserProfile(user), nil
}

// ValidateAccessToken checks a token's signature and expiry and that its
// user is still active
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, errors.Join(utils.ErrInvalidToken, err)
	}
	var active int64
	err = s.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", userID, true).Count(&active).Error
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if active == 0 {
		return nil, ErrInactiveUser
	}
	return claims, nil
}

// ChangePassword replaces the caller's password after checking the current
// one and revokes their other refresh tokens
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.Password, current) {
		return ErrInvalidCredentials
	}
	if err := utils.ValidatePassword("new_password", next); err != nil {
		return err
	}
	if current == next {
		return &catalog.ValidationError{Field: "new_password", Message: "must differ from the current password"}
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.RevokeAll(ctx, userID)
}

// SetupTOTP generates a secret for the user and stores it disabled until a
// code is verified
func (s *AuthService) SetupTOTP(ctx context.Context, userID uuid.UUID) (*utils.TOTPSetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, &catalog.ConflictError{Reason: "totp_enabled", Message: "two-factor authentication is already enabled"}
	}
	setup, err := utils.GenerateTOTP(s.totpIssuer, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp: %w", err)
	}
	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"totp_secret":  setup.Secret,
		"totp_enabled": false,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}
	return setup, nil
}

// EnableTOTP turns two-factor on once code matches the pending secret
func (s *AuthService) EnableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return &catalog.ValidationError{Field: "code", Message: "two-factor setup has not been started"}
	}
	if !utils.ValidateTOTP(code, *user.TOTPSecret) {
		return ErrInvalidTOTP
	}
	return s.db.WithContext(ctx).Model(user).Update("totp_enabled", true).Error
}

// DisableTOTP turns two-factor off. The password is required again.
func (s *AuthService) DisableTOTP(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.Password, password) {
		return ErrInvalidCredentials
	}
	return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"totp_secret":  nil,
		"totp_enabled": false,
	}).Error
}

// AccessLogs returns a page of the user's own gateway access log
func (s *AuthService) AccessLogs(ctx context.Context, userID uuid.UUID, page, limit int) ([]auth.AccessLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&auth.AccessLog{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count access logs: %w", err)
	}
	logs := make([]auth.AccessLog, 0)
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list access logs: %w", err)
	}
	return logs, total, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, client ClientInfo) (*Session, error) {
	return s.issueSession(s.db.WithContext(ctx), user, client)
}

func (s *AuthService) issueSession(tx *gorm.DB, user *models.User, client ClientInfo) (*Session, error) {
	access, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := auth.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		IPAddress: truncate(client.IP, 50),
		UserAgent: truncate(client.UserAgent, 500),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         NewUserProfile(user),
	}, nil
}

func (s *AuthService) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := withRoles(s.db.WithContext(ctx)).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &user, nil
}

func withRoles(q *gorm.DB) *gorm.DB {
	return q.Preload("Roles").Preload("Roles.Permissions")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
