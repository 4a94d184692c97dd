package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/database/models/auth"
	utils "transparencia-backend/shared/utils/auth"
)

type revocations map[string]time.Time

func (r revocations) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	r[jti] = expiresAt
	return nil
}

func newDB(t *testing.T) *gorm.DB {
	return dbtest.New(t, &models.Permission{}, &models.Role{}, &models.DependencyType{}, &models.Dependency{}, &models.User{}, &auth.RefreshToken{}, &auth.AccessLog{})
}

func seedRole(t *testing.T, db *gorm.DB, name string, codes ...string) models.Role {
	t.Helper()
	role := models.Role{Name: name, Active: true}
	for _, code := range codes {
		role.Permissions = append(role.Permissions, models.Permission{Code: code})
	}
	require.NoError(t, db.Create(&role).Error)
	return role
}

func seedUser(t *testing.T, db *gorm.DB, email, password string, roles ...models.Role) models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Email: email, Password: hash, FirstName: "Ana", LastName: "López", Active: true, Roles: roles}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func newAuth(t *testing.T) (*AuthService, *gorm.DB, revocations) {
	t.Helper()
	db := newDB(t)
	revoked := revocations{}
	return NewAuthService(db, utils.NewTokenIssuer("test-secret", time.Minute), 0, "Portal", revoked), db, revoked
}

var client = ClientInfo{IP: "10.0.0.1", UserAgent: "test-agent"}

func TestLoginIssuesSession(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	role := seedRole(t, db, models.RoleCarga, models.PermDocumentUpload, models.PermReportView)
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1", role)

	session, err := svc.Login(ctx, Credentials{Email: " ANA@morelos.gob.mx ", Password: "secreto1"}, client)
	require.NoError(t, err)

	assert.Len(t, session.RefreshToken, 2*utils.RefreshTokenBytes)
	assert.Equal(t, []string{models.RoleCarga}, session.User.Roles)
	assert.ElementsMatch(t, []string{models.PermDocumentUpload, models.PermReportView}, session.User.Permissions)
	require.NotNil(t, session.User.LastAccessAt)

	claims, err := utils.NewTokenIssuer("test-secret", time.Minute).Validate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)

	var stored auth.RefreshToken
	require.NoError(t, db.Where("token = ?", session.RefreshToken).First(&stored).Error)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
	assert.Equal(t, "test-agent", stored.UserAgent)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), stored.ExpiresAt, time.Minute)
}

func TestLoginFailures(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")

	_, err := svc.Login(ctx, Credentials{Email: "nadie@morelos.gob.mx", Password: "secreto1"}, client)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "otro"}, client)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, db.Model(&user).Update("active", false).Error)
	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestTwoFactorFlow(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")

	setup, err := svc.SetupTOTP(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.QRCodePNG)

	// pending setup does not require a code yet
	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.EnableTOTP(ctx, user.ID, "000000"), ErrInvalidTOTP)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(ctx, user.ID, code))

	_, err = svc.SetupTOTP(ctx, user.ID)
	_, isConflict := catalog.AsConflict(err)
	assert.True(t, isConflict)

	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	assert.ErrorIs(t, err, ErrTOTPRequired)
	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1", TOTPCode: code}, client)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DisableTOTP(ctx, user.ID, "otro"), ErrInvalidCredentials)
	require.NoError(t, svc.DisableTOTP(ctx, user.ID, "secreto1"))
	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")

	first, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken, client)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken, client)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = svc.Refresh(ctx, "desconocido", client)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	expired := auth.RefreshToken{UserID: user.ID, Token: "vencido", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, db.Create(&expired).Error)
	_, err = svc.Refresh(ctx, "vencido", client)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	require.NoError(t, db.Model(&user).Update("active", false).Error)
	_, err = svc.Refresh(ctx, second.RefreshToken, client)
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	svc, db, revoked := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")

	session, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)

	exp := time.Now().Add(time.Minute)
	require.NoError(t, svc.Logout(ctx, user.ID, session.RefreshToken, "jti-1", exp))
	assert.Equal(t, exp, revoked["jti-1"])

	_, err = svc.Refresh(ctx, session.RefreshToken, client)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	// another user's token is untouched
	other := seedUser(t, db, "otro@morelos.gob.mx", "secreto1")
	otherSession, err := svc.Login(ctx, Credentials{Email: other.Email, Password: "secreto1"}, client)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, user.ID, otherSession.RefreshToken, "", time.Time{}))
	_, err = svc.Refresh(ctx, otherSession.RefreshToken, client)
	assert.NoError(t, err)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")
	session, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "mal", "nuevo123"), ErrInvalidCredentials)
	_, isValidation := catalog.AsValidation(svc.ChangePassword(ctx, user.ID, "secreto1", "corta"))
	assert.True(t, isValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "secreto1", "nuevo123"))
	_, err = svc.Refresh(ctx, session.RefreshToken, client)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = svc.Login(ctx, Credentials{Email: user.Email, Password: "nuevo123"}, client)
	assert.NoError(t, err)
}

func TestValidateAccessTokenChecksUser(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")
	session, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "secreto1"}, client)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.Email, claims.Email)

	require.NoError(t, db.Model(&user).Update("active", false).Error)
	_, err = svc.ValidateAccessToken(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrInactiveUser)

	_, err = svc.ValidateAccessToken(ctx, "basura")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestValidateAccessTokenRejectsForeignSubject(t *testing.T) {
	svc, _, _ := newAuth(t)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, utils.Claims{
		Email: "ana@morelos.gob.mx",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-user-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), forged)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrInactiveUser)
}

func TestAccessLogsAreScopedToUser(t *testing.T) {
	svc, db, _ := newAuth(t)
	ctx := context.Background()
	user := seedUser(t, db, "ana@morelos.gob.mx", "secreto1")
	other := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&auth.AccessLog{UserID: &user.ID, Method: "GET", Path: "/api/auth/profile", StatusCode: 200}).Error)
	}
	require.NoError(t, db.Create(&auth.AccessLog{UserID: &other, Method: "GET", Path: "/x", StatusCode: 200}).Error)

	logs, total, err := svc.AccessLogs(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, logs, 2)
}
