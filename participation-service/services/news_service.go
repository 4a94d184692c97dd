package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/storage"
	docUtils "transparencia-backend/shared/utils/document"
	"transparencia-backend/shared/utils/query"
)

// NewsImagePrefix is the object-store prefix of news images
const NewsImagePrefix = "noticias"

// CarouselSize is the number of items shown on the portal home page
const CarouselSize = 5

var spanishMonths = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// ImageLimits bounds the images accepted for news
type ImageLimits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// ImageInput is an uploaded news image
type ImageInput struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// NewsInput carries the news fields. Nil pointers are left untouched on update.
type NewsInput struct {
	Title       *string
	Summary     *string
	Content     *string
	ImageURL    *string
	Link        *string
	PublishedAt *time.Time
	Active      *bool
}

// NewsFilter narrows news listings
type NewsFilter struct {
	Active  *bool
	Search  string
	OrderBy string
	Order   string
	Page    int
	Limit   int
}

// CarouselItem is a news item shaped for the home carousel
type CarouselItem struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	FormattedDate string    `json:"formatted_date"`
	Summary       string    `json:"summary"`
	ImageURL      string    `json:"image_url"`
	ImageAlt      string    `json:"image_alt"`
	Link          string    `json:"link"`
	PublishedAt   time.Time `json:"published_at"`
}

// NewsService manages news items and their images
type NewsService struct {
	db      *gorm.DB
	store   storage.ObjectStore
	limits  ImageLimits
	baseURL string
	now     func() time.Time
}

// NewNewsService creates the service. Uploaded images are served from
// <baseURL>/api/public/news/<id>/image.
func NewNewsService(db *gorm.DB, store storage.ObjectStore, limits ImageLimits, baseURL string) *NewsService {
	return &NewsService{
		db:      db,
		store:   store,
		limits:  limits,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Create inserts a news item, storing image under the news prefix
func (s *NewsService) Create(ctx context.Context, in NewsInput, image *ImageInput) (*participation.News, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, &catalog.ValidationError{Field: "title", Message: "is required"}
	}

	news := &participation.News{Active: true, PublishedAt: s.now()}
	applyNewsInput(news, in)

	if image != nil {
		key, err := s.putImage(ctx, image)
		if err != nil {
			return nil, err
		}
		news.ImageKey = key
	}

	if err := s.db.WithContext(ctx).Create(news).Error; err != nil {
		s.removeImage(ctx, news.ImageKey)
		return nil, fmt.Errorf("save news: %w", err)
	}
	if news.ImageKey != "" {
		if err := s.setImageURL(ctx, news); err != nil {
			return nil, err
		}
	}

	logger.L().Info("news created", "news_id", news.ID)
	return news, nil
}

// Update changes a news item, replacing its image when one is uploaded
func (s *NewsService) Update(ctx context.Context, id uint, in NewsInput, image *ImageInput) (*participation.News, error) {
	news, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, &catalog.ValidationError{Field: "title", Message: "cannot be empty"}
	}
	applyNewsInput(news, in)

	oldKey := ""
	if image != nil {
		key, err := s.putImage(ctx, image)
		if err != nil {
			return nil, err
		}
		oldKey = news.ImageKey
		news.ImageKey = key
		news.ImageURL = s.imageURL(news.ID)
	} else if news.ImageKey != "" && news.ImageURL != s.imageURL(news.ID) {
		// an external URL replaces the stored image
		oldKey = news.ImageKey
		news.ImageKey = ""
	}

	if err := s.db.WithContext(ctx).Save(news).Error; err != nil {
		if image != nil {
			s.removeImage(ctx, news.ImageKey)
		}
		return nil, fmt.Errorf("update news %d: %w", id, err)
	}
	if oldKey != "" && oldKey != news.ImageKey {
		s.removeImage(ctx, oldKey)
	}
	return news, nil
}

// SetActive shows or hides a news item
func (s *NewsService) SetActive(ctx context.Context, id uint, active bool) (*participation.News, error) {
	res := s.db.WithContext(ctx).Model(&participation.News{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return nil, fmt.Errorf("toggle news %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &catalog.NotFoundError{Entity: "news", ID: id}
	}
	return s.Get(ctx, id)
}

// Delete removes a news item and its stored image
func (s *NewsService) Delete(ctx context.Context, id uint) error {
	news, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&participation.News{}, id).Error; err != nil {
		return fmt.Errorf("delete news %d: %w", id, err)
	}
	s.removeImage(ctx, news.ImageKey)
	logger.L().Info("news deleted", "news_id", id)
	return nil
}

// Get returns a news item regardless of its active flag
func (s *NewsService) Get(ctx context.Context, id uint) (*participation.News, error) {
	var news participation.News
	err := s.db.WithContext(ctx).First(&news, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "news", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load news %d: %w", id, err)
	}
	return &news, nil
}

// GetPublished returns an active news item
func (s *NewsService) GetPublished(ctx context.Context, id uint) (*participation.News, error) {
	news, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !news.Active {
		return nil, &catalog.NotFoundError{Entity: "news", ID: id}
	}
	return news, nil
}

// List returns a page of news ordered by publication or creation date
func (s *NewsService) List(ctx context.Context, f NewsFilter) ([]participation.News, query.PaginationResponse, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := s.db.WithContext(ctx).Model(&participation.News{})
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	q = query.ApplySearch(q, f.Search, []string{"title", "summary", "content"})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("count news: %w", err)
	}

	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}
	column := "published_at"
	if f.OrderBy == "created_at" {
		column = "created_at"
	}

	items := make([]participation.News, 0)
	err := query.ApplyPagination(q.Order(column+" "+order).Order("id "+order), f.Page, f.Limit).Find(&items).Error
	if err != nil {
		return nil, query.PaginationResponse{}, fmt.Errorf("list news: %w", err)
	}
	return items, query.BuildPaginationResponse(f.Page, f.Limit, total), nil
}

// Recent returns the latest active news
func (s *NewsService) Recent(ctx context.Context, limit int) ([]participation.News, error) {
	if limit < 1 || limit > 50 {
		limit = CarouselSize
	}
	items := make([]participation.News, 0, limit)
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("published_at DESC").Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("recent news: %w", err)
	}
	return items, nil
}

// Carousel returns the latest active news shaped for the home page
func (s *NewsService) Carousel(ctx context.Context, limit int) ([]CarouselItem, error) {
	if limit < 1 {
		limit = CarouselSize
	}
	items, err := s.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CarouselItem, len(items))
	for i, n := range items {
		out[i] = CarouselItem{
			ID:            n.ID,
			Title:         n.Title,
			FormattedDate: FormatMonthYear(n.PublishedAt),
			Summary:       n.Summary,
			ImageURL:      n.ImageURL,
			ImageAlt:      n.Title,
			Link:          n.Link,
			PublishedAt:   n.PublishedAt,
		}
	}
	return out, nil
}

// Count returns the number of news, optionally filtered by active
func (s *NewsService) Count(ctx context.Context, active *bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&participation.News{})
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// OpenImage returns the stored image of an active news item
func (s *NewsService) OpenImage(ctx context.Context, id uint) (io.ReadCloser, *storage.ObjectInfo, error) {
	news, err := s.GetPublished(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if news.ImageKey == "" {
		return nil, nil, &catalog.NotFoundError{Entity: "image of news", ID: id}
	}
	rc, info, err := s.store.Get(ctx, news.ImageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, &catalog.NotFoundError{Entity: "image of news", ID: id}
	}
	return rc, info, err
}

// FormatMonthYear renders t as "<Spanish month> <year>"
func FormatMonthYear(t time.Time) string {
	return fmt.Sprintf("%s %d", spanishMonths[t.Month()-1], t.Year())
}

func (s *NewsService) putImage(ctx context.Context, image *ImageInput) (string, error) {
	if err := docUtils.ValidateFile(image.Name, image.Size, s.limits.MaxBytes, s.limits.AllowedExtensions); err != nil {
		return "", &catalog.ValidationError{Field: "image", Message: err.Error()}
	}
	ext := docUtils.Extension(image.Name)
	key := docUtils.ObjectKey(NewsImagePrefix, ext)
	if err := s.store.Put(ctx, key, image.Reader, image.Size, docUtils.MimeType(ext, image.ContentType)); err != nil {
		return "", fmt.Errorf("store news image: %w", err)
	}
	return key, nil
}

func (s *NewsService) setImageURL(ctx context.Context, news *participation.News) error {
	news.ImageURL = s.imageURL(news.ID)
	err := s.db.WithContext(ctx).Model(news).Update("image_url", news.ImageURL).Error
	if err != nil {
		return fmt.Errorf("set news image url: %w", err)
	}
	return nil
}

func (s *NewsService) imageURL(id uint) string {
	return fmt.Sprintf("%s/api/public/news/%d/image", s.baseURL, id)
}

func (s *NewsService) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Remove(ctx, key); err != nil {
		logger.L().Warn("failed to remove news image", "key", key, "error", err)
	}
}

func applyNewsInput(n *participation.News, in NewsInput) {
	if in.Title != nil {
		n.Title = strings.TrimSpace(*in.Title)
	}
	if in.Summary != nil {
		n.Summary = *in.Summary
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.ImageURL != nil {
		n.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Link != nil {
		n.Link = strings.TrimSpace(*in.Link)
	}
	if in.PublishedAt != nil {
		n.PublishedAt = *in.PublishedAt
	}
	if in.Active != nil {
		n.Active = *in.Active
	}
}
