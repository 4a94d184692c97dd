package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/storage"
)

func newNewsEnv(t *testing.T) (*NewsService, *storage.MemoryStore) {
	t.Helper()
	db := dbtest.New(t, &participation.News{})
	store := storage.NewMemoryStore()
	svc := NewNewsService(db, store, ImageLimits{
		MaxBytes:          1024,
		AllowedExtensions: []string{".jpg", ".png", ".webp"},
	}, "http://localhost:8000/")
	return svc, store
}

func str(s string) *string { return &s }

func pngImage(name, body string) *ImageInput {
	return &ImageInput{Name: name, Size: int64(len(body)), ContentType: "image/png", Reader: strings.NewReader(body)}
}

func TestCreateNewsWithImage(t *testing.T) {
	svc, store := newNewsEnv(t)
	ctx := context.Background()

	news, err := svc.Create(ctx, NewsInput{Title: str(" Informe trimestral "), Summary: str("Resumen")}, pngImage("portada.png", "png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Informe trimestral", news.Title)
	assert.True(t, news.Active)
	assert.False(t, news.PublishedAt.IsZero())

	require.Len(t, store.Keys(), 1)
	assert.True(t, strings.HasPrefix(store.Keys()[0], NewsImagePrefix+"/"))
	assert.True(t, strings.HasSuffix(store.Keys()[0], ".png"))
	assert.Equal(t, "http://localhost:8000/api/public/news/1/image", news.ImageURL)

	rc, info, err := svc.OpenImage(ctx, news.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", info.ContentType)
}

func TestCreateNewsValidation(t *testing.T) {
	svc, store := newNewsEnv(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewsInput{Summary: str("sin título")}, nil)
	_, ok := catalog.AsValidation(err)
	assert.True(t, ok)

	_, err = svc.Create(ctx, NewsInput{Title: str("Con PDF")}, pngImage("informe.pdf", "pdf"))
	_, ok = catalog.AsValidation(err)
	assert.True(t, ok)

	_, err = svc.Create(ctx, NewsInput{Title: str("Muy grande")}, pngImage("grande.png", strings.Repeat("x", 2048)))
	_, ok = catalog.AsValidation(err)
	assert.True(t, ok)

	assert.Empty(t, store.Keys())
}

func TestUpdateNewsImage(t *testing.T) {
	svc, store := newNewsEnv(t)
	ctx := context.Background()

	news, err := svc.Create(ctx, NewsInput{Title: str("Obra pública")}, pngImage("a.png", "first"))
	require.NoError(t, err)
	firstKey := store.Keys()[0]

	// resending the stored image URL keeps the image
	news, err = svc.Update(ctx, news.ID, NewsInput{Title: str("Obra pública 2025"), ImageURL: str(news.ImageURL)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{firstKey}, store.Keys())

	news, err = svc.Update(ctx, news.ID, NewsInput{}, pngImage("b.webp", "second"))
	require.NoError(t, err)
	require.Len(t, store.Keys(), 1)
	assert.NotEqual(t, firstKey, store.Keys()[0])
	assert.True(t, strings.HasSuffix(store.Keys()[0], ".webp"))

	news, err = svc.Update(ctx, news.ID, NewsInput{ImageURL: str("https://cdn.morelos.gob.mx/foto.jpg")}, nil)
	require.NoError(t, err)
	assert.Empty(t, store.Keys())
	assert.Equal(t, "https://cdn.morelos.gob.mx/foto.jpg", news.ImageURL)

	_, _, err = svc.OpenImage(ctx, news.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	_, err = svc.Update(ctx, news.ID, NewsInput{Title: str(" ")}, nil)
	_, ok := catalog.AsValidation(err)
	assert.True(t, ok)
}

func TestNewsVisibility(t *testing.T) {
	svc, store := newNewsEnv(t)
	ctx := context.Background()

	hidden, err := svc.Create(ctx, NewsInput{Title: str("Borrador")}, pngImage("c.png", "img"))
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, hidden.ID, false)
	require.NoError(t, err)

	_, err = svc.GetPublished(ctx, hidden.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	_, _, err = svc.OpenImage(ctx, hidden.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	got, err := svc.Get(ctx, hidden.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active := true
	n, err := svc.Count(ctx, &active)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.SetActive(ctx, 99, true)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	require.NoError(t, svc.Delete(ctx, hidden.ID))
	assert.Empty(t, store.Keys())
	assert.True(t, errors.Is(svc.Delete(ctx, hidden.ID), catalog.ErrNotFound))
}

func TestCarouselAndList(t *testing.T) {
	svc, _ := newNewsEnv(t)
	ctx := context.Background()

	base := time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		published := base.AddDate(0, i, 0)
		_, err := svc.Create(ctx, NewsInput{
			Title:       str("Noticia " + published.Month().String()),
			Summary:     str("Resumen"),
			PublishedAt: &published,
		}, nil)
		require.NoError(t, err)
	}
	inactive := false
	_, err := svc.Create(ctx, NewsInput{Title: str("Oculta"), Active: &inactive, PublishedAt: &base}, nil)
	require.NoError(t, err)

	items, err := svc.Carousel(ctx, CarouselSize)
	require.NoError(t, err)
	require.Len(t, items, CarouselSize)
	assert.Equal(t, "Noticia July", items[0].Title)
	assert.Equal(t, "Julio 2025", items[0].FormattedDate)
	assert.Equal(t, items[0].Title, items[0].ImageAlt)

	active := true
	page, pagination, err := svc.List(ctx, NewsFilter{Active: &active, Order: "asc", Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "Noticia January", page[0].Title)
	assert.Equal(t, int64(7), pagination.Total)

	all, _, err := svc.List(ctx, NewsFilter{Search: "oculta"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, CarouselSize)
}

func TestFormatMonthYear(t *testing.T) {
	assert.Equal(t, "Enero 2025", FormatMonthYear(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Diciembre 2024", FormatMonthYear(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)))
}
