package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/participation"
)

func intPtr(i int) *int { return &i }

func TestSocialLinks(t *testing.T) {
	db := dbtest.New(t, &participation.SocialLink{})
	svc := NewSocialLinkService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, SocialLinkInput{URL: str("https://facebook.com/morelos")})
	_, ok := catalog.AsValidation(err)
	assert.True(t, ok)
	_, err = svc.Create(ctx, SocialLinkInput{Name: str("Facebook"), URL: str("facebook.com/morelos")})
	_, ok = catalog.AsValidation(err)
	assert.True(t, ok)

	fb, err := svc.Create(ctx, SocialLinkInput{Name: str(" Facebook "), URL: str("https://facebook.com/morelos"), Icon: str("fab fa-facebook"), SortOrder: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Facebook", fb.Name)
	assert.True(t, fb.Active)

	x, err := svc.Create(ctx, SocialLinkInput{Name: str("X"), URL: str("https://x.com/morelos"), SortOrder: intPtr(1)})
	require.NoError(t, err)
	yt, err := svc.Create(ctx, SocialLinkInput{Name: str("YouTube"), URL: str("https://youtube.com/@morelos"), SortOrder: intPtr(3)})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, yt.ID, false)
	require.NoError(t, err)

	active := true
	links, err := svc.List(ctx, &active, "", "")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, []uint{x.ID, fb.ID}, []uint{links[0].ID, links[1].ID})

	byName, err := svc.List(ctx, nil, "name", "desc")
	require.NoError(t, err)
	assert.Equal(t, "YouTube", byName[0].Name)

	updated, err := svc.Update(ctx, x.ID, SocialLinkInput{Description: str("Cuenta oficial"), SortOrder: intPtr(9)})
	require.NoError(t, err)
	assert.Equal(t, "Cuenta oficial", updated.Description)
	assert.Equal(t, 9, updated.SortOrder)
	assert.Equal(t, "https://x.com/morelos", updated.URL)

	_, err = svc.Update(ctx, x.ID, SocialLinkInput{Name: str("")})
	_, ok = catalog.AsValidation(err)
	assert.True(t, ok)

	n, err := svc.Count(ctx, &active)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, svc.Delete(ctx, fb.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, fb.ID), catalog.ErrNotFound))
	_, err = svc.Get(ctx, fb.ID)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	_, err = svc.SetActive(ctx, fb.ID, true)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}
