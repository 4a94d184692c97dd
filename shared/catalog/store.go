package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/utils/query"
)

// MaxAncestorHops bounds the upward walk of AncestorPath
const MaxAncestorHops = 20

// MinSearchLength is the shortest free-text term that is applied
const MinSearchLength = 2

// PathNode is one step of an ancestor path
type PathNode struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// CatalogInput carries the mutable fields of a catalog.
// Nil pointers are left untouched on update.
type CatalogInput struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	LevelDescription *string `json:"level_description"`
	Icon             *string `json:"icon"`
	SortOrder        *int    `json:"sort_order"`
	Active           *bool   `json:"active"`
	AcceptsDocuments *bool   `json:"accepts_documents"`

	// ParentSet distinguishes "move to root" (ParentSet && ParentID == nil)
	// from "keep current parent" (!ParentSet)
	ParentSet bool  `json:"-"`
	ParentID  *uint `json:"parent_id"`
}

// TreeNode is a catalog with its nested active children
type TreeNode struct {
	document.Catalog
	Children []*TreeNode `json:"children"`
}

// Invalidator is notified when the shape of the tree changes
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// TreeStore performs CRUD and structural queries over catalogs
type TreeStore struct {
	db          *gorm.DB
	invalidator Invalidator
}

// NewTreeStore creates a store. invalidator may be nil.
func NewTreeStore(db *gorm.DB, invalidator Invalidator) *TreeStore {
	return &TreeStore{db: db, invalidator: invalidator}
}

func ordered(q *gorm.DB) *gorm.DB {
	return q.Order("sort_order ASC").Order("name ASC")
}

// Roots returns active catalogs without parent ordered by (sort_order, name)
func (s *TreeStore) Roots(ctx context.Context) ([]document.Catalog, error) {
	var roots []document.Catalog
	err := ordered(s.db.WithContext(ctx).
		Where("parent_id IS NULL AND active = ?", true)).
		Find(&roots).Error
	if err != nil {
		return nil, fmt.Errorf("load root catalogs: %w", err)
	}
	return roots, nil
}

// Get returns an active catalog
func (s *TreeStore) Get(ctx context.Context, id uint) (*document.Catalog, error) {
	var c document.Catalog
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("catalog", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %d: %w", id, err)
	}
	return &c, nil
}

// Children returns the active children of an active catalog
func (s *TreeStore) Children(ctx context.Context, id uint) ([]document.Catalog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	var children []document.Catalog
	err := ordered(s.db.WithContext(ctx).
		Where("parent_id = ? AND active = ?", id, true)).
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("load children of catalog %d: %w", id, err)
	}
	return children, nil
}

// AncestorPath walks parent links upward and returns the path root -> target.
// A broken or cyclic chain ends the walk early with the partial path.
func (s *TreeStore) AncestorPath(ctx context.Context, id uint) ([]PathNode, error) {
	path := make([]PathNode, 0, 4)
	seen := make(map[uint]bool)
	current := &id

	for hops := 0; current != nil && hops < MaxAncestorHops; hops++ {
		if seen[*current] {
			break
		}
		seen[*current] = true

		var c document.Catalog
		err := s.db.WithContext(ctx).
			Select("id", "name", "level", "parent_id").
			Where("id = ?", *current).
			First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk ancestors of catalog %d: %w", id, err)
		}

		path = append(path, PathNode{ID: c.ID, Name: c.Name, Level: c.Level})
		current = c.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Create inserts a catalog, deriving its level from the parent
func (s *TreeStore) Create(ctx context.Context, in CatalogInput) (*document.Catalog, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}

	c := document.Catalog{
		Name:   strings.TrimSpace(*in.Name),
		Active: true,
	}
	applyInput(&c, in)

	level, err := s.levelFor(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	c.ParentID = in.ParentID
	c.Level = level

	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create catalog: %w", err)
	}
	s.invalidate(ctx)
	return &c, nil
}

// Update applies the given fields. Reparenting recomputes the level of the
// node and of its whole subtree.
func (s *TreeStore) Update(ctx context.Context, id uint, in CatalogInput) (*document.Catalog, error) {
	var c document.Catalog
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("catalog", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %d: %w", id, err)
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	applyInput(&c, in)

	reparented := false
	if in.ParentSet && !sameParent(c.ParentID, in.ParentID) {
		if in.ParentID != nil {
			if err := s.checkNoCycle(ctx, id, *in.ParentID); err != nil {
				return nil, err
			}
		}
		level, err := s.levelFor(ctx, in.ParentID)
		if err != nil {
			return nil, err
		}
		c.ParentID = in.ParentID
		c.Level = level
		reparented = true
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Parent", "Children").Save(&c).Error; err != nil {
			return err
		}
		if reparented {
			return relevelSubtree(tx, c.ID, c.Level)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update catalog %d: %w", id, err)
	}

	s.invalidate(ctx)
	return &c, nil
}

// UpdateOrder changes only the sibling sort key
func (s *TreeStore) UpdateOrder(ctx context.Context, id uint, order int) (*document.Catalog, error) {
	return s.Update(ctx, id, CatalogInput{SortOrder: &order})
}

// Delete soft-deletes a catalog with no active children and no active documents
func (s *TreeStore) Delete(ctx context.Context, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var children int64
	if err := s.db.WithContext(ctx).Model(&document.Catalog{}).
		Where("parent_id = ? AND active = ?", id, true).
		Count(&children).Error; err != nil {
		return fmt.Errorf("count children of catalog %d: %w", id, err)
	}
	if children > 0 {
		return &ConflictError{
			Reason:  ReasonChildren,
			Message: fmt.Sprintf("catalog %q has %d active child catalogs", c.Name, children),
		}
	}

	var docs int64
	if err := s.db.WithContext(ctx).Model(&document.Document{}).
		Where("catalog_id = ? AND active = ?", id, true).
		Count(&docs).Error; err != nil {
		return fmt.Errorf("count documents of catalog %d: %w", id, err)
	}
	if docs > 0 {
		return &ConflictError{
			Reason:  ReasonDocuments,
			Message: fmt.Sprintf("catalog %q has %d active documents", c.Name, docs),
		}
	}

	if err := s.db.WithContext(ctx).Model(&document.Catalog{}).
		Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate catalog %d: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// WithChildren returns an active catalog along with its active children
func (s *TreeStore) WithChildren(ctx context.Context, id uint) (*document.Catalog, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Children = children
	return c, nil
}

// Tree returns every active catalog nested under its active parent
func (s *TreeStore) Tree(ctx context.Context) ([]*TreeNode, error) {
	var all []document.Catalog
	if err := ordered(s.db.WithContext(ctx).Where("active = ?", true)).Find(&all).Error; err != nil {
		return nil, fmt.Errorf("load catalog tree: %w", err)
	}

	nodes := make(map[uint]*TreeNode, len(all))
	for i := range all {
		nodes[all[i].ID] = &TreeNode{Catalog: all[i], Children: []*TreeNode{}}
	}

	roots := make([]*TreeNode, 0)
	for i := range all {
		node := nodes[all[i].ID]
		if all[i].ParentID == nil {
			roots = append(roots, node)
			continue
		}
		// nodes under an inactive parent are unreachable and dropped
		if parent, ok := nodes[*all[i].ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots, nil
}

// SearchByName returns active catalogs whose name contains term, ordered by
// level, sort order and name. Terms shorter than MinSearchLength are rejected.
func (s *TreeStore) SearchByName(ctx context.Context, term string, limit int) ([]document.Catalog, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < MinSearchLength {
		return nil, &ValidationError{Field: "q", Message: fmt.Sprintf("must have at least %d characters", MinSearchLength)}
	}
	if limit <= 0 {
		limit = 50
	}

	var found []document.Catalog
	err := s.db.WithContext(ctx).
		Where("active = ? AND LOWER(name) LIKE ? ESCAPE '\\'", true, query.LikePattern(term)).
		Order("level ASC").Order("sort_order ASC").Order("name ASC").
		Limit(limit).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("search catalogs: %w", err)
	}
	return found, nil
}

// List returns one page of active catalogs ordered by level, sort order and
// name, optionally filtered by a name term
func (s *TreeStore) List(ctx context.Context, page, pageSize int, term string) ([]document.Catalog, Pagination, error) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	q := query.ApplySearch(
		s.db.WithContext(ctx).Model(&document.Catalog{}).Where("active = ?", true),
		term, []string{"name"},
	)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count catalogs: %w", err)
	}

	catalogs := make([]document.Catalog, 0)
	err := query.ApplyPagination(q.Order("level ASC").Order("sort_order ASC").Order("name ASC"), page, pageSize).
		Find(&catalogs).Error
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list catalogs: %w", err)
	}
	return catalogs, NewPagination(page, pageSize, total), nil
}

// Count returns the number of active catalogs
func (s *TreeStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&document.Catalog{}).Where("active = ?", true).Count(&n).Error
	return n, err
}

// levelFor returns the level a child of parentID gets. The parent must be active.
func (s *TreeStore) levelFor(ctx context.Context, parentID *uint) (int, error) {
	if parentID == nil {
		return 0, nil
	}
	parent, err := s.Get(ctx, *parentID)
	if err != nil {
		return 0, err
	}
	return parent.Level + 1, nil
}

// checkNoCycle rejects moving id under newParent when newParent is id itself
// or lies in its subtree
func (s *TreeStore) checkNoCycle(ctx context.Context, id, newParent uint) error {
	if id == newParent {
		return &ConflictError{Reason: ReasonCycle, Message: "a catalog cannot be its own parent"}
	}
	current := &newParent
	for hops := 0; current != nil && hops < MaxAncestorHops; hops++ {
		if *current == id {
			return &ConflictError{Reason: ReasonCycle, Message: "a catalog cannot be moved under its own descendant"}
		}
		var c document.Catalog
		err := s.db.WithContext(ctx).Select("id", "parent_id").First(&c, *current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("check ancestors of catalog %d: %w", newParent, err)
		}
		current = c.ParentID
	}
	return nil
}

// relevelSubtree rewrites the level of every descendant of rootID breadth first
func relevelSubtree(tx *gorm.DB, rootID uint, rootLevel int) error {
	frontier := []uint{rootID}
	level := rootLevel
	visited := map[uint]bool{rootID: true}

	for depth := 0; len(frontier) > 0 && depth < MaxAncestorHops; depth++ {
		var children []document.Catalog
		if err := tx.Select("id").Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return err
		}
		level++
		next := make([]uint, 0, len(children))
		for _, child := range children {
			if !visited[child.ID] {
				visited[child.ID] = true
				next = append(next, child.ID)
			}
		}
		if len(next) == 0 {
			return nil
		}
		if err := tx.Model(&document.Catalog{}).Where("id IN ?", next).Update("level", level).Error; err != nil {
			return err
		}
		frontier = next
	}
	return nil
}

func (s *TreeStore) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}

func applyInput(c *document.Catalog, in CatalogInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.LevelDescription != nil {
		c.LevelDescription = *in.LevelDescription
	}
	if in.Icon != nil {
		c.Icon = *in.Icon
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if in.AcceptsDocuments != nil {
		c.AcceptsDocuments = *in.AcceptsDocuments
	}
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
