package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
	utils "transparencia-backend/shared/utils/auth"
)

// AllPermissions grants every permission code to a seeded role
const AllPermissions = "*"

// SeedData is the reference data loaded by cmd/seed
type SeedData struct {
	Roles         []RoleSeed         `yaml:"roles"`
	Admin         AdminSeed          `yaml:"admin"`
	DocumentTypes []DocumentTypeSeed `yaml:"document_types"`
	Periodicities []PeriodicitySeed  `yaml:"periodicities"`
	Catalogs      []CatalogSeed      `yaml:"catalogs"`
	Dependencies  []DependencySeed   `yaml:"dependencies"`
	SocialLinks   []SocialLinkSeed   `yaml:"social_links"`
}

type RoleSeed struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// AdminSeed is the first account of the portal. An existing account keeps
// its password.
type AdminSeed struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Roles     []string `yaml:"roles"`
}

type DocumentTypeSeed struct {
	Name       string `yaml:"name"`
	Extensions string `yaml:"extensions"`
}

type PeriodicitySeed struct {
	Name            string `yaml:"name"`
	PortalName      string `yaml:"portal_name"`
	MonthsPerPeriod int    `yaml:"months_per_period"`
	PeriodsPerYear  int    `yaml:"periods_per_year"`
}

// CatalogSeed is one node of the catalog tree. Level and sort order follow
// the position in the file.
type CatalogSeed struct {
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	LevelDescription string        `yaml:"level_description"`
	Icon             string        `yaml:"icon"`
	AcceptsDocuments bool          `yaml:"accepts_documents"`
	Children         []CatalogSeed `yaml:"children"`
}

// DependencySeed is one institution. Its type is created on first use, the
// level follows the nesting starting at 1.
type DependencySeed struct {
	Name     string           `yaml:"name"`
	Type     string           `yaml:"type"`
	Children []DependencySeed `yaml:"children"`
}

type SocialLinkSeed struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Icon        string `yaml:"icon"`
	Description string `yaml:"description"`
}

// SeedReport counts the rows created by Seed
type SeedReport struct {
	Permissions   int
	Roles         int
	AdminCreated  bool
	DocumentTypes int
	Periodicities int
	Catalogs      int
	Dependencies  int
	SocialLinks   int
}

// ParseSeedData decodes YAML seed data, rejecting unknown keys
func ParseSeedData(r io.Reader) (*SeedData, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var data SeedData
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	for _, role := range data.Roles {
		if strings.TrimSpace(role.Name) == "" {
			return nil, errors.New("seed data: role without name")
		}
	}
	return &data, nil
}

// Seed inserts whatever reference data is missing. Running it twice creates
// nothing the second time.
func Seed(ctx context.Context, db *gorm.DB, data *SeedData) (SeedReport, error) {
	var report SeedReport
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if report.Permissions, err = seedPermissions(tx); err != nil {
			return err
		}
		if report.Roles, err = seedRoles(tx, data.Roles); err != nil {
			return err
		}
		if report.AdminCreated, err = seedAdmin(tx, data.Admin); err != nil {
			return err
		}
		if report.DocumentTypes, err = seedDocumentTypes(tx, data.DocumentTypes); err != nil {
			return err
		}
		if report.Periodicities, err = seedPeriodicities(tx, data.Periodicities); err != nil {
			return err
		}
		if report.Catalogs, err = seedCatalogs(tx, nil, 0, data.Catalogs); err != nil {
			return err
		}
		if report.Dependencies, err = seedDependencies(tx, nil, 1, data.Dependencies, map[string]uint{}); err != nil {
			return err
		}
		report.SocialLinks, err = seedSocialLinks(tx, data.SocialLinks)
		return err
	})
	if err != nil {
		return report, err
	}

	logger.L().Info("database seed completed",
		"permissions", report.Permissions,
		"roles", report.Roles,
		"admin_created", report.AdminCreated,
		"document_types", report.DocumentTypes,
		"periodicities", report.Periodicities,
		"catalogs", report.Catalogs,
		"dependencies", report.Dependencies,
		"social_links", report.SocialLinks,
	)
	return report, nil
}

// firstOrCreate inserts value when no row matches query. It reports whether
// a row was created.
func firstOrCreate(tx *gorm.DB, value interface{}, query string, args ...interface{}) (bool, error) {
	res := tx.Where(query, args...).Limit(1).Find(value)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := tx.Create(value).Error; err != nil {
		return false, err
	}
	return true, nil
}

func seedPermissions(tx *gorm.DB) (int, error) {
	created := 0
	for _, p := range models.AllPermissionCodes {
		perm := p
		ok, err := firstOrCreate(tx, &perm, "code = ?", perm.Code)
		if err != nil {
			return created, fmt.Errorf("seed permission %s: %w", p.Code, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func seedRoles(tx *gorm.DB, roles []RoleSeed) (int, error) {
	created := 0
	for _, seed := range roles {
		role := models.Role{Name: seed.Name, Description: seed.Description, Active: true}
		ok, err := firstOrCreate(tx, &role, "name = ?", seed.Name)
		if err != nil {
			return created, fmt.Errorf("seed role %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}

		if len(seed.Permissions) == 0 {
			continue
		}
		var perms []models.Permission
		q := tx.Model(&models.Permission{})
		if !containsString(seed.Permissions, AllPermissions) {
			q = q.Where("code IN ?", seed.Permissions)
		}
		if err := q.Find(&perms).Error; err != nil {
			return created, fmt.Errorf("load permissions of role %s: %w", seed.Name, err)
		}
		if len(perms) == 0 {
			continue
		}
		if err := tx.Model(&role).Association("Permissions").Append(perms); err != nil {
			return created, fmt.Errorf("grant permissions to role %s: %w", seed.Name, err)
		}
	}
	return created, nil
}

func seedAdmin(tx *gorm.DB, seed AdminSeed) (bool, error) {
	if strings.TrimSpace(seed.Email) == "" {
		return false, nil
	}
	email := strings.ToLower(strings.TrimSpace(seed.Email))

	var user models.User
	res := tx.Where("email = ?", email).Limit(1).Find(&user)
	if res.Error != nil {
		return false, fmt.Errorf("load admin %s: %w", email, res.Error)
	}

	created := false
	if res.RowsAffected == 0 {
		hash, err := utils.HashPassword(seed.Password)
		if err != nil {
			return false, fmt.Errorf("hash admin password: %w", err)
		}
		user = models.User{
			Email:     email,
			Password:  hash,
			FirstName: seed.FirstName,
			LastName:  seed.LastName,
			Active:    true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return false, fmt.Errorf("create admin %s: %w", email, err)
		}
		created = true
	}

	if len(seed.Roles) == 0 {
		return created, nil
	}
	var roles []models.Role
	if err := tx.Where("name IN ?", seed.Roles).Find(&roles).Error; err != nil {
		return created, fmt.Errorf("load admin roles: %w", err)
	}
	if len(roles) > 0 {
		if err := tx.Model(&user).Association("Roles").Append(roles); err != nil {
			return created, fmt.Errorf("assign admin roles: %w", err)
		}
	}
	return created, nil
}

func seedDocumentTypes(tx *gorm.DB, types []DocumentTypeSeed) (int, error) {
	created := 0
	for _, seed := range types {
		t := document.DocumentType{Name: seed.Name, Extensions: seed.Extensions, Active: true}
		ok, err := firstOrCreate(tx, &t, "name = ?", seed.Name)
		if err != nil {
			return created, fmt.Errorf("seed document type %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func seedPeriodicities(tx *gorm.DB, periodicities []PeriodicitySeed) (int, error) {
	created := 0
	for _, seed := range periodicities {
		p := document.Periodicity{
			Name:            seed.Name,
			PortalName:      seed.PortalName,
			MonthsPerPeriod: seed.MonthsPerPeriod,
			PeriodsPerYear:  seed.PeriodsPerYear,
			Active:          true,
		}
		ok, err := firstOrCreate(tx, &p, "name = ?", seed.Name)
		if err != nil {
			return created, fmt.Errorf("seed periodicity %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// seedCatalogs walks the tree depth first. Nodes are matched by name under
// the same parent.
func seedCatalogs(tx *gorm.DB, parentID *uint, level int, nodes []CatalogSeed) (int, error) {
	created := 0
	for i, seed := range nodes {
		c := document.Catalog{
			Name:             seed.Name,
			Description:      seed.Description,
			LevelDescription: seed.LevelDescription,
			Icon:             seed.Icon,
			SortOrder:        i + 1,
			Level:            level,
			Active:           true,
			AcceptsDocuments: seed.AcceptsDocuments,
			ParentID:         parentID,
		}

		var ok bool
		var err error
		if parentID == nil {
			ok, err = firstOrCreate(tx, &c, "parent_id IS NULL AND name = ?", seed.Name)
		} else {
			ok, err = firstOrCreate(tx, &c, "parent_id = ? AND name = ?", *parentID, seed.Name)
		}
		if err != nil {
			return created, fmt.Errorf("seed catalog %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}

		n, err := seedCatalogs(tx, &c.ID, level+1, seed.Children)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// seedDependencies walks the institutions tree like seedCatalogs. types
// caches type ids by name.
func seedDependencies(tx *gorm.DB, parentID *uint, level int, nodes []DependencySeed, types map[string]uint) (int, error) {
	created := 0
	for i, seed := range nodes {
		if level > models.MaxDependencyLevel {
			return created, fmt.Errorf("seed dependency %s: deeper than %d levels", seed.Name, models.MaxDependencyLevel)
		}
		typeID, known := types[seed.Type]
		if !known {
			ty := models.DependencyType{Name: seed.Type}
			if _, err := firstOrCreate(tx, &ty, "name = ?", seed.Type); err != nil {
				return created, fmt.Errorf("seed dependency type %s: %w", seed.Type, err)
			}
			typeID, types[seed.Type] = ty.ID, ty.ID
		}

		d := models.Dependency{
			Name:      seed.Name,
			TypeID:    typeID,
			ParentID:  parentID,
			Level:     level,
			SortOrder: i + 1,
			Active:    true,
		}
		var ok bool
		var err error
		if parentID == nil {
			ok, err = firstOrCreate(tx, &d, "parent_id IS NULL AND name = ?", seed.Name)
		} else {
			ok, err = firstOrCreate(tx, &d, "parent_id = ? AND name = ?", *parentID, seed.Name)
		}
		if err != nil {
			return created, fmt.Errorf("seed dependency %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}

		n, err := seedDependencies(tx, &d.ID, level+1, seed.Children, types)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func seedSocialLinks(tx *gorm.DB, links []SocialLinkSeed) (int, error) {
	created := 0
	for i, seed := range links {
		link := participation.SocialLink{
			Name:        seed.Name,
			URL:         seed.URL,
			Icon:        seed.Icon,
			Description: seed.Description,
			Active:      true,
			SortOrder:   i + 1,
		}
		ok, err := firstOrCreate(tx, &link, "name = ?", seed.Name)
		if err != nil {
			return created, fmt.Errorf("seed social link %s: %w", seed.Name, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// DropAll removes every portal table, join tables first
func DropAll(db *gorm.DB) error {
	migrator := db.Migrator()
	for _, table := range []string{"role_permissions", "user_roles"} {
		if err := migrator.DropTable(table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}

	all := Models()
	for i := len(all) - 1; i >= 0; i-- {
		if err := migrator.DropTable(all[i]); err != nil {
			return fmt.Errorf("drop %T: %w", all[i], err)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
