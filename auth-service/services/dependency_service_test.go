package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
)

type institutions struct {
	hacienda, salud, ingresos, catastro, cerrada, cerradaSub, vigilancia models.Dependency

	secretaria, subsecretaria, direccion models.DependencyType
}

// seedInstitutions builds
//
//	Secretaría de Hacienda > Subsecretaría de Ingresos > Dirección de Catastro
//	                                                   > Dirección Cerrada (inactive)
//	Secretaría de Salud > Subsecretaría Cerrada (inactive) > Dirección de Vigilancia
func seedInstitutions(t *testing.T, db *gorm.DB) institutions {
	t.Helper()
	var in institutions
	in.secretaria = models.DependencyType{Name: "Secretaría"}
	in.subsecretaria = models.DependencyType{Name: "Subsecretaría"}
	in.direccion = models.DependencyType{Name: "Dirección"}
	for _, ty := range []*models.DependencyType{&in.secretaria, &in.subsecretaria, &in.direccion} {
		require.NoError(t, db.Create(ty).Error)
	}

	add := func(d *models.Dependency, name string, ty models.DependencyType, level int, parent *models.Dependency, active bool) {
		*d = models.Dependency{Name: name, TypeID: ty.ID, Level: level, Active: active}
		if parent != nil {
			d.ParentID = &parent.ID
		}
		require.NoError(t, db.Create(d).Error)
	}
	add(&in.hacienda, "Secretaría de Hacienda", in.secretaria, 1, nil, true)
	add(&in.salud, "Secretaría de Salud", in.secretaria, 1, nil, true)
	add(&in.ingresos, "Subsecretaría de Ingresos", in.subsecretaria, 2, &in.hacienda, true)
	add(&in.catastro, "Dirección de Catastro", in.direccion, 3, &in.ingresos, true)
	add(&in.cerrada, "Dirección Cerrada", in.direccion, 3, &in.ingresos, false)
	add(&in.cerradaSub, "Subsecretaría Cerrada", in.subsecretaria, 2, &in.salud, false)
	add(&in.vigilancia, "Dirección de Vigilancia", in.direccion, 3, &in.cerradaSub, true)
	return in
}

func depNames(deps []models.Dependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

func TestDependencyTree(t *testing.T) {
	db := newDB(t)
	seedInstitutions(t, db)
	svc := NewDependencyService(db)

	tree, err := svc.Tree(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Secretaría de Hacienda", "Secretaría de Salud"}, depNames(tree))

	hacienda := tree[0]
	require.Equal(t, []string{"Subsecretaría de Ingresos"}, depNames(hacienda.Children))
	assert.Equal(t, []string{"Dirección de Catastro"}, depNames(hacienda.Children[0].Children))
	require.NotNil(t, hacienda.Type)
	assert.Equal(t, "Secretaría", hacienda.Type.Name)

	// the inactive subsecretariat hides its active child
	assert.Empty(t, tree[1].Children)
}

func TestDependencyNestStopsAtMaxLevel(t *testing.T) {
	one, two, three := uint(1), uint(2), uint(3)
	flat := []models.Dependency{
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b", ParentID: &one},
		{ID: 3, Name: "c", ParentID: &two},
		{ID: 4, Name: "d", ParentID: &three},
	}
	tree := nest(flat)
	require.Len(t, tree, 1)
	c := tree[0].Children[0].Children[0]
	assert.Equal(t, "c", c.Name)
	assert.Empty(t, c.Children)
}

func TestDependencyQueries(t *testing.T) {
	db := newDB(t)
	in := seedInstitutions(t, db)
	svc := NewDependencyService(db)
	ctx := context.Background()

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Secretaría de Hacienda", "Secretaría de Salud",
		"Subsecretaría de Ingresos",
		"Dirección de Catastro", "Dirección de Vigilancia",
	}, depNames(all))

	level3, err := svc.ByLevel(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dirección de Catastro", "Dirección de Vigilancia"}, depNames(level3))

	for _, level := range []int{0, 4} {
		_, err = svc.ByLevel(ctx, level)
		assert.ErrorIs(t, err, catalog.ErrNotFound, "level %d", level)
	}

	byType, err := svc.ByType(ctx, in.secretaria.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Secretaría de Hacienda", "Secretaría de Salud"}, depNames(byType))

	children, err := svc.ByParent(ctx, in.ingresos.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dirección de Catastro"}, depNames(children))

	sel, err := svc.ForUserSelection(ctx)
	require.NoError(t, err)
	require.Equal(t, "Dirección de Catastro", sel[0].Name)
	require.NotNil(t, sel[0].Parent)
	require.NotNil(t, sel[0].Parent.Parent)
	assert.Equal(t, "Secretaría de Hacienda", sel[0].Parent.Parent.Name)
}

func TestDependencyGet(t *testing.T) {
	db := newDB(t)
	in := seedInstitutions(t, db)
	svc := NewDependencyService(db)
	ctx := context.Background()

	got, err := svc.Get(ctx, in.ingresos.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Parent)
	assert.Equal(t, "Secretaría de Hacienda", got.Parent.Name)
	assert.Equal(t, "Subsecretaría", got.Type.Name)
	assert.Equal(t, []string{"Dirección de Catastro"}, depNames(got.Children))

	_, err = svc.Get(ctx, in.cerrada.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	ok, err := svc.Exists(ctx, in.catastro.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	for _, id := range []uint{in.cerrada.ID, 999} {
		ok, err = svc.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "id %d", id)
	}
}

func TestDependencyPathsAndStats(t *testing.T) {
	db := newDB(t)
	seedInstitutions(t, db)
	svc := NewDependencyService(db)
	ctx := context.Background()

	paths, err := svc.WithFullPath(ctx)
	require.NoError(t, err)
	byName := map[string]string{}
	for _, p := range paths {
		byName[p.Name] = p.FullPath
	}
	assert.Equal(t, "Secretaría de Hacienda > Subsecretaría de Ingresos > Dirección de Catastro", byName["Dirección de Catastro"])
	assert.Equal(t, "Secretaría de Salud", byName["Secretaría de Salud"])

	stats, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, []LevelCount{{Level: 1, Count: 2}, {Level: 2, Count: 1}, {Level: 3, Count: 2}}, stats.ByLevel)
	require.Len(t, stats.ByType, 3)
	assert.Equal(t, "Dirección", stats.ByType[0].TypeName)
	assert.Equal(t, int64(2), stats.ByType[0].Count)
	assert.Equal(t, int64(1), stats.ByType[2].Count)

	structure, err := svc.Structure(ctx)
	require.NoError(t, err)
	assert.Len(t, structure.Types, 3)
	assert.Len(t, structure.Dependencies, 5)
	assert.Len(t, structure.Tree, 2)

	levels, err := svc.ByLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, levels.Level1, 2)
	assert.Len(t, levels.Level2, 1)
	assert.Len(t, levels.Level3, 2)
}

func TestUserDependencyAssignment(t *testing.T) {
	authSvc, db, _ := newAuth(t)
	in := seedInstitutions(t, db)
	svc := NewUserService(db, authSvc)
	ctx := context.Background()

	user, err := svc.Create(ctx, NewUser{
		Email: "catastro@morelos.gob.mx", Password: "secreto1", FirstName: "Eva", DependencyID: &in.catastro.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, user.DependencyID)
	assert.Equal(t, in.catastro.ID, *user.DependencyID)

	_, err = svc.Create(ctx, NewUser{
		Email: "otra@morelos.gob.mx", Password: "secreto1", FirstName: "Otra", DependencyID: &in.cerrada.ID,
	})
	ve, isValidation := catalog.AsValidation(err)
	require.True(t, isValidation)
	assert.Equal(t, "dependency_id", ve.Field)

	_, err = svc.Update(ctx, user.ID, UserUpdate{DependencyID: &in.cerrada.ID})
	_, isValidation = catalog.AsValidation(err)
	assert.True(t, isValidation)

	updated, err := svc.Update(ctx, user.ID, UserUpdate{DependencyID: &in.ingresos.ID})
	require.NoError(t, err)
	assert.Equal(t, in.ingresos.ID, *updated.DependencyID)

	none := uint(0)
	cleared, err := svc.Update(ctx, user.ID, UserUpdate{DependencyID: &none})
	require.NoError(t, err)
	assert.Nil(t, cleared.DependencyID)
}
