package services

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/logger"
	utils "transparencia-backend/shared/utils/auth"
)

const (
	MaxNameLength = 100
	MaxAreaLength = 200
)

// profilePhonePattern is the ten digit national number users enter themselves
var profilePhonePattern = regexp.MustCompile(`^[0-9]{10}$`)

var photoExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ProfileUpdate is what users may change about themselves. Nil fields are
// left alone, an empty PhotoURL, Area or Phone clears the value.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	PhotoURL  *string `json:"photo_url"`
	Area      *string `json:"area"`
	Phone     *string `json:"phone"`
}

func (in ProfileUpdate) validate() error {
	checks := make([]error, 0, 5)
	if in.FirstName != nil {
		checks = append(checks, utils.ValidateLength("first_name", *in.FirstName, 1, MaxNameLength))
	}
	if in.LastName != nil {
		checks = append(checks, utils.ValidateLength("last_name", *in.LastName, 0, MaxNameLength))
	}
	if in.PhotoURL != nil {
		checks = append(checks, validatePhotoURL("photo_url", *in.PhotoURL))
	}
	if in.Area != nil {
		checks = append(checks, utils.ValidateLength("area", *in.Area, 0, MaxAreaLength))
	}
	if in.Phone != nil {
		if phone := strings.TrimSpace(*in.Phone); phone != "" && !profilePhonePattern.MatchString(phone) {
			checks = append(checks, &catalog.ValidationError{Field: "phone", Message: "must be 10 digits"})
		}
	}
	return utils.FirstInvalid(checks...)
}

// validatePhotoURL accepts an empty value or an http(s) URL to a JPG or PNG
func validatePhotoURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &catalog.ValidationError{Field: field, Message: "must be an http or https URL"}
	}
	if !photoExtensions[strings.ToLower(path.Ext(u.Path))] {
		return &catalog.ValidationError{Field: field, Message: "must be JPG or PNG"}
	}
	return nil
}

// UpdateProfile applies a user's changes to their own profile
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (*UserProfile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	set("first_name", in.FirstName)
	set("last_name", in.LastName)
	set("photo_url", in.PhotoURL)
	set("area", in.Area)
	set("phone", in.Phone)

	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
		if err != nil {
			return nil, fmt.Errorf("update profile of %s: %w", userID, err)
		}
		logger.L().Info("profile updated", "user_id", userID, "fields", len(updates))
	}
	return s.Profile(ctx, userID)
}
