package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/logger"
	utils "transparencia-backend/shared/utils/auth"
	"transparencia-backend/shared/utils/query"
)

// ReasonEmailTaken is the conflict reason for a duplicate user email
const ReasonEmailTaken = "email_taken"

// TemporaryPasswordBytes is the entropy of generated passwords before hex encoding
const TemporaryPasswordBytes = 6

// NewUser is the input of CreateUser
type NewUser struct {
	Email        string   `json:"email" binding:"required"`
	Password     string   `json:"password" binding:"required"`
	FirstName    string   `json:"first_name" binding:"required"`
	LastName     string   `json:"last_name"`
	Phone        string   `json:"phone"`
	DependencyID *uint    `json:"dependency_id"`
	RoleIDs      []uint   `json:"role_ids"`
	Roles        []string `json:"roles"`
}

// UserUpdate changes the fields that are not nil. Roles replace the current
// set when RoleIDs is not nil. A DependencyID of 0 unassigns the user.
type UserUpdate struct {
	Email        *string `json:"email"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Phone        *string `json:"phone"`
	DependencyID *uint   `json:"dependency_id"`
	RoleIDs      []uint  `json:"role_ids"`
}

// UserFilter selects users for listing
type UserFilter struct {
	Search string
	Active *bool
	Sort   query.SortParams
	Page   int
	Limit  int
}

var userSortFields = map[string]string{
	"created_at":     "created_at",
	"email":          "email",
	"first_name":     "first_name",
	"last_name":      "last_name",
	"last_access_at": "last_access_at",
}

// UserService manages users and their roles
type UserService struct {
	db   *gorm.DB
	auth *AuthService
}

// NewUserService creates the service. auth is used to revoke sessions of
// deactivated users and may be nil.
func NewUserService(db *gorm.DB, auth *AuthService) *UserService {
	return &UserService{db: db, auth: auth}
}

// Create registers a user with the given roles
func (s *UserService) Create(ctx context.Context, in NewUser) (*UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := utils.FirstInvalid(
		utils.ValidateEmail("email", email),
		utils.ValidatePassword("password", in.Password),
		utils.ValidateRequired("first_name", in.FirstName),
		utils.ValidatePhone("phone", in.Phone),
	); err != nil {
		return nil, err
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken > 0 {
		return nil, &catalog.ConflictError{Reason: ReasonEmailTaken, Message: fmt.Sprintf("email %s is already registered", email)}
	}

	if in.DependencyID != nil {
		if err := s.checkDependency(ctx, *in.DependencyID); err != nil {
			return nil, err
		}
	}

	roles, err := s.findRoles(ctx, in.RoleIDs, in.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		Password:     hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		DependencyID: in.DependencyID,
		Active:       true,
		Roles:        roles,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.L().Info("user created", "user_id", user.ID, "roles", user.RoleNames())
	return s.Get(ctx, user.ID)
}

// List returns a page of users, newest first unless f.Sort names a known column
func (s *UserService) List(ctx context.Context, f UserFilter) ([]UserProfile, query.PaginationResponse, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	q = query.ApplySearch(q, f.Search, []string{"email", "first_name", "last_name"})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := query.ApplyPagination(query.ApplySort(withRoles(q), f.Sort, userSortFields, "created_at DESC"), f.Page, f.Limit).Find(&users).Error
	if err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("list users: %w", err)
	}

	profiles := make([]UserProfile, len(users))
	for i := range users {
		profiles[i] = *NewUserProfile(&users[i])
	}
	return profiles, query.BuildPaginationResponse(f.Page, f.Limit, total), nil
}

// Get returns one user, active or not
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewUserProfile(user), nil
}

// Update changes profile fields and optionally replaces the roles
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UserUpdate) (*UserProfile, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := utils.ValidateEmail("email", email); err != nil {
			return nil, err
		}
		if email != user.Email {
			var taken int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&taken).Error; err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken > 0 {
				return nil, &catalog.ConflictError{Reason: ReasonEmailTaken, Message: fmt.Sprintf("email %s is already registered", email)}
			}
			updates["email"] = email
		}
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, &catalog.ValidationError{Field: "first_name", Message: "cannot be empty"}
		}
		updates["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		if err := utils.ValidatePhone("phone", *in.Phone); err != nil {
			return nil, err
		}
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.DependencyID != nil {
		if *in.DependencyID == 0 {
			updates["dependency_id"] = nil
		} else {
			if err := s.checkDependency(ctx, *in.DependencyID); err != nil {
				return nil, err
			}
			updates["dependency_id"] = *in.DependencyID
		}
	}

	var roles []models.Role
	if in.RoleIDs != nil {
		if roles, err = s.findRoles(ctx, in.RoleIDs, nil); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.RoleIDs != nil {
			if err := tx.Model(user).Association("Roles").Replace(roles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// checkDependency rejects ids that do not name an active dependency
func (s *UserService) checkDependency(ctx context.Context, id uint) error {
	exists, err := NewDependencyService(s.db).Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &catalog.ValidationError{Field: "dependency_id", Message: fmt.Sprintf("dependency %d does not exist or is inactive", id)}
	}
	return nil
}

// Deactivate blocks a user from logging in and revokes their refresh tokens
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.setActive(ctx, id, false); err != nil {
		return err
	}
	if s.auth != nil {
		if err := s.auth.RevokeAll(ctx, id); err != nil {
			return fmt.Errorf("revoke sessions of %s: %w", id, err)
		}
	}
	return nil
}

// Restore reactivates a user
func (s *UserService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, true)
}

// ResetPassword sets a new password chosen by an administrator. With an
// empty password a temporary one is generated and returned.
func (s *UserService) ResetPassword(ctx context.Context, id uuid.UUID, password string) (string, error) {
	temporary := ""
	if password == "" {
		generated, err := utils.GenerateRandomToken(TemporaryPasswordBytes)
		if err != nil {
			return "", err
		}
		password, temporary = generated, generated
	}
	if err := utils.ValidatePassword("password", password); err != nil {
		return "", err
	}
	if _, err := s.load(ctx, id); err != nil {
		return "", err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash).Error; err != nil {
		return "", fmt.Errorf("reset password of %s: %w", id, err)
	}
	logger.L().Info("password reset by administrator", "user_id", id, "temporary", temporary != "")
	if s.auth != nil {
		if err := s.auth.RevokeAll(ctx, id); err != nil {
			return "", err
		}
	}
	return temporary, nil
}

// Count returns the number of users, optionally only those with the given
// active flag
func (s *UserService) Count(ctx context.Context, active *bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// Roles lists roles with their permissions, optionally filtered by active flag
func (s *UserService) Roles(ctx context.Context, active *bool) ([]models.Role, error) {
	q := s.db.WithContext(ctx).Preload("Permissions")
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	roles := make([]models.Role, 0)
	err := q.Order("name").Find(&roles).Error
	return roles, err
}

// ByRole lists the users holding a role
func (s *UserService) ByRole(ctx context.Context, roleID uint) ([]UserProfile, error) {
	var role models.Role
	if err := s.db.WithContext(ctx).First(&role, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &catalog.NotFoundError{Entity: "role", ID: roleID}
		}
		return nil, fmt.Errorf("load role %d: %w", roleID, err)
	}

	var users []models.User
	err := withRoles(s.db.WithContext(ctx)).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role_id = ?", roleID).
		Order("users.email").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users of role %d: %w", roleID, err)
	}
	profiles := make([]UserProfile, len(users))
	for i := range users {
		profiles[i] = *NewUserProfile(&users[i])
	}
	return profiles, nil
}

// PermissionMatrix maps every role name to the permission codes it grants
func (s *UserService) PermissionMatrix(ctx context.Context) (map[string][]string, error) {
	roles, err := s.Roles(ctx, nil)
	if err != nil {
		return nil, err
	}
	matrix := make(map[string][]string, len(roles))
	for _, role := range roles {
		codes := make([]string, len(role.Permissions))
		for i, p := range role.Permissions {
			codes[i] = p.Code
		}
		sort.Strings(codes)
		matrix[role.Name] = codes
	}
	return matrix, nil
}

func (s *UserService) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("set active of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &catalog.NotFoundError{Entity: "user", ID: id}
	}
	logger.L().Info("user status changed", "user_id", id, "active", active)
	return nil
}

// findRoles loads active roles by id or by name. Unknown roles are an error.
func (s *UserService) findRoles(ctx context.Context, ids []uint, names []string) ([]models.Role, error) {
	roles := make([]models.Role, 0)
	if len(ids) == 0 && len(names) == 0 {
		return roles, nil
	}

	q := s.db.WithContext(ctx).Where("active = ?", true)
	want := len(ids)
	if len(ids) > 0 {
		q = q.Where("id IN ?", dedupeUint(ids))
		want = len(dedupeUint(ids))
	} else {
		q = q.Where("name IN ?", names)
		want = len(dedupeString(names))
	}
	if err := q.Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	if len(roles) != want {
		return nil, &catalog.ValidationError{Field: "roles", Message: "unknown or inactive role"}
	}
	return roles, nil
}

func (s *UserService) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
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

func dedupeUint(in []uint) []uint {
	seen := make(map[uint]bool, len(in))
	out := make([]uint, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func dedupeString(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
