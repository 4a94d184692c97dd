package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/participation"
)

// SocialLinkInput carries the social link fields. Nil pointers are left
// untouched on update.
type SocialLinkInput struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
	SortOrder   *int    `json:"sort_order"`
}

// SocialLinkService manages the official social network profiles
type SocialLinkService struct {
	db *gorm.DB
}

func NewSocialLinkService(db *gorm.DB) *SocialLinkService {
	return &SocialLinkService{db: db}
}

// Create inserts a link, active unless stated otherwise
func (s *SocialLinkService) Create(ctx context.Context, in SocialLinkInput) (*participation.SocialLink, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, &catalog.ValidationError{Field: "name", Message: "is required"}
	}
	if in.URL == nil {
		return nil, &catalog.ValidationError{Field: "url", Message: "is required"}
	}

	link := &participation.SocialLink{Active: true}
	if err := applySocialLinkInput(link, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, fmt.Errorf("save social link: %w", err)
	}
	return link, nil
}

// Update changes a link
func (s *SocialLinkService) Update(ctx context.Context, id uint, in SocialLinkInput) (*participation.SocialLink, error) {
	link, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, &catalog.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if err := applySocialLinkInput(link, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(link).Error; err != nil {
		return nil, fmt.Errorf("update social link %d: %w", id, err)
	}
	return link, nil
}

// SetActive shows or hides a link
func (s *SocialLinkService) SetActive(ctx context.Context, id uint, active bool) (*participation.SocialLink, error) {
	res := s.db.WithContext(ctx).Model(&participation.SocialLink{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return nil, fmt.Errorf("toggle social link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &catalog.NotFoundError{Entity: "social link", ID: id}
	}
	return s.Get(ctx, id)
}

// Delete removes a link
func (s *SocialLinkService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&participation.SocialLink{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete social link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &catalog.NotFoundError{Entity: "social link", ID: id}
	}
	return nil
}

// Get returns a link by id
func (s *SocialLinkService) Get(ctx context.Context, id uint) (*participation.SocialLink, error) {
	var link participation.SocialLink
	err := s.db.WithContext(ctx).First(&link, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "social link", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load social link %d: %w", id, err)
	}
	return &link, nil
}

// List returns links ordered by sort_order or name. active nil lists all.
func (s *SocialLinkService) List(ctx context.Context, active *bool, orderBy, order string) ([]participation.SocialLink, error) {
	q := s.db.WithContext(ctx).Model(&participation.SocialLink{})
	if active != nil {
		q = q.Where("active = ?", *active)
	}

	direction := "ASC"
	if strings.EqualFold(order, "desc") {
		direction = "DESC"
	}
	column := "sort_order"
	if orderBy == "name" {
		column = "name"
	}

	links := make([]participation.SocialLink, 0)
	if err := q.Order(column + " " + direction).Order("id ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list social links: %w", err)
	}
	return links, nil
}

// Count returns the number of links, optionally filtered by active
func (s *SocialLinkService) Count(ctx context.Context, active *bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&participation.SocialLink{})
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func applySocialLinkInput(link *participation.SocialLink, in SocialLinkInput) error {
	if in.URL != nil {
		u, err := url.Parse(strings.TrimSpace(*in.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &catalog.ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
		}
		link.URL = u.String()
	}
	if in.Name != nil {
		link.Name = strings.TrimSpace(*in.Name)
	}
	if in.Icon != nil {
		link.Icon = strings.TrimSpace(*in.Icon)
	}
	if in.Description != nil {
		link.Description = *in.Description
	}
	if in.Active != nil {
		link.Active = *in.Active
	}
	if in.SortOrder != nil {
		link.SortOrder = *in.SortOrder
	}
	return nil
}
