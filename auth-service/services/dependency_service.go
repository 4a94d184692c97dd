package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models"
)

// PathSeparator joins the names of a dependency path
const PathSeparator = " > "

// DependencyPath is a dependency with its "root > ... > leaf" name
type DependencyPath struct {
	models.Dependency
	FullPath string `json:"full_path"`
}

// DependencyStructure is the whole institutions catalog in one response
type DependencyStructure struct {
	Types        []models.DependencyType `json:"types"`
	Dependencies []models.Dependency     `json:"dependencies"`
	Tree         []models.Dependency     `json:"tree"`
}

// DependencyLevels groups active dependencies by level
type DependencyLevels struct {
	Level1 []models.Dependency `json:"level1"`
	Level2 []models.Dependency `json:"level2"`
	Level3 []models.Dependency `json:"level3"`
}

type LevelCount struct {
	Level int   `json:"level"`
	Count int64 `json:"count"`
}

type TypeCount struct {
	TypeID   uint   `json:"type_id"`
	TypeName string `json:"type_name"`
	Count    int64  `json:"count"`
}

// DependencyStats counts active dependencies
type DependencyStats struct {
	Total   int64        `json:"total"`
	ByLevel []LevelCount `json:"by_level"`
	ByType  []TypeCount  `json:"by_type"`
}

// DependencyService reads the institutions tree. Dependencies are seeded,
// there is no write API.
type DependencyService struct {
	db *gorm.DB
}

func NewDependencyService(db *gorm.DB) *DependencyService {
	return &DependencyService{db: db}
}

func byPosition(q *gorm.DB) *gorm.DB {
	return q.Order("level ASC").Order("sort_order ASC").Order("name ASC")
}

func (s *DependencyService) active(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Dependency{}).Where("dependencies.active = ?", true)
}

// Types lists the dependency types by name
func (s *DependencyService) Types(ctx context.Context) ([]models.DependencyType, error) {
	types := make([]models.DependencyType, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("list dependency types: %w", err)
	}
	return types, nil
}

// List returns every active dependency with its type and parent
func (s *DependencyService) List(ctx context.Context) ([]models.Dependency, error) {
	return s.find("list dependencies", s.active(ctx).Preload("Type").Preload("Parent"))
}

// ByLevel returns the active dependencies of a level. Only levels 1 to
// MaxDependencyLevel exist.
func (s *DependencyService) ByLevel(ctx context.Context, level int) ([]models.Dependency, error) {
	if level < 1 || level > models.MaxDependencyLevel {
		return nil, &catalog.NotFoundError{Entity: "dependency level", ID: level}
	}
	return s.find("list dependencies by level", s.active(ctx).Preload("Type").Preload("Parent").Where("level = ?", level))
}

func (s *DependencyService) ByType(ctx context.Context, typeID uint) ([]models.Dependency, error) {
	return s.find("list dependencies by type", s.active(ctx).Preload("Type").Preload("Parent").Where("type_id = ?", typeID))
}

// ByParent returns the active children of a dependency
func (s *DependencyService) ByParent(ctx context.Context, parentID uint) ([]models.Dependency, error) {
	return s.find("list child dependencies", s.active(ctx).Preload("Type").Where("parent_id = ?", parentID))
}

// Get returns an active dependency with its type, parent and active children
func (s *DependencyService) Get(ctx context.Context, id uint) (*models.Dependency, error) {
	var d models.Dependency
	err := s.active(ctx).
		Preload("Type").
		Preload("Parent").
		Preload("Children", func(q *gorm.DB) *gorm.DB {
			return q.Where("active = ?", true).Order("sort_order ASC").Order("name ASC")
		}).
		Where("id = ?", id).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "dependency", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load dependency %d: %w", id, err)
	}
	return &d, nil
}

// Tree returns the root dependencies with their active descendants nested
// under Children
func (s *DependencyService) Tree(ctx context.Context) ([]models.Dependency, error) {
	all, err := s.find("load dependency tree", s.active(ctx).Preload("Type"))
	if err != nil {
		return nil, err
	}
	return nest(all), nil
}

// nest links each dependency under its parent. Children of inactive
// parents are dropped along with them.
func nest(all []models.Dependency) []models.Dependency {
	byParent := make(map[uint][]models.Dependency)
	roots := make([]models.Dependency, 0)
	for _, d := range all {
		if d.ParentID == nil {
			roots = append(roots, d)
			continue
		}
		byParent[*d.ParentID] = append(byParent[*d.ParentID], d)
	}

	var attach func(d models.Dependency, depth int) models.Dependency
	attach = func(d models.Dependency, depth int) models.Dependency {
		d.Children = nil
		if depth >= models.MaxDependencyLevel {
			return d
		}
		for _, child := range byParent[d.ID] {
			d.Children = append(d.Children, attach(child, depth+1))
		}
		return d
	}

	for i := range roots {
		roots[i] = attach(roots[i], 1)
	}
	return roots
}

// ForUserSelection returns the leaf level dependencies with parent and
// grandparent, as offered when assigning a user
func (s *DependencyService) ForUserSelection(ctx context.Context) ([]models.Dependency, error) {
	return s.find("list selectable dependencies",
		s.active(ctx).Preload("Type").Preload("Parent.Parent").Where("level = ?", models.MaxDependencyLevel))
}

// WithFullPath returns the active dependencies with their ancestor path
func (s *DependencyService) WithFullPath(ctx context.Context) ([]DependencyPath, error) {
	all, err := s.find("list dependency paths", s.active(ctx).Preload("Type").Preload("Parent.Parent"))
	if err != nil {
		return nil, err
	}
	out := make([]DependencyPath, len(all))
	for i, d := range all {
		out[i] = DependencyPath{Dependency: d, FullPath: fullPath(&all[i])}
	}
	return out, nil
}

func fullPath(d *models.Dependency) string {
	names := make([]string, 0, models.MaxDependencyLevel)
	for n := d; n != nil && len(names) < models.MaxDependencyLevel; n = n.Parent {
		names = append(names, n.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, PathSeparator)
}

// Structure loads types, the flat list and the tree concurrently
func (s *DependencyService) Structure(ctx context.Context) (*DependencyStructure, error) {
	out := &DependencyStructure{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Types, err = s.Types(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Dependencies, err = s.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Tree, err = s.Tree(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DependencyService) ByLevels(ctx context.Context) (*DependencyLevels, error) {
	out := &DependencyLevels{}
	g, gctx := errgroup.WithContext(ctx)
	for level, dst := range map[int]*[]models.Dependency{1: &out.Level1, 2: &out.Level2, 3: &out.Level3} {
		level, dst := level, dst
		g.Go(func() (err error) {
			*dst, err = s.ByLevel(gctx, level)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count aggregates active dependencies by level and by type
func (s *DependencyService) Count(ctx context.Context) (*DependencyStats, error) {
	out := &DependencyStats{ByLevel: []LevelCount{}, ByType: []TypeCount{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.active(gctx).Count(&out.Total).Error
	})
	g.Go(func() error {
		return s.active(gctx).
			Select("level, COUNT(*) AS count").
			Group("level").Order("level ASC").
			Scan(&out.ByLevel).Error
	})
	g.Go(func() error {
		return s.active(gctx).
			Select("dependencies.type_id AS type_id, dependency_types.name AS type_name, COUNT(*) AS count").
			Joins("JOIN dependency_types ON dependency_types.id = dependencies.type_id").
			Group("dependencies.type_id, dependency_types.name").
			Order("dependency_types.name ASC").
			Scan(&out.ByType).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count dependencies: %w", err)
	}
	return out, nil
}

// Exists reports whether id names an active dependency
func (s *DependencyService) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.active(ctx).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check dependency %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *DependencyService) find(what string, q *gorm.DB) ([]models.Dependency, error) {
	out := make([]models.Dependency, 0)
	if err := byPosition(q).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}
