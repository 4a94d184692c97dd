package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database/models"
	"transparencia-backend/shared/database/models/auth"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
)

var DB *gorm.DB

// Models lists every table managed by AutoMigrate, parents before children
func Models() []interface{} {
	return []interface{}{
		&models.Permission{},
		&models.Role{},
		&models.DependencyType{},
		&models.Dependency{},
		&models.User{},
		&auth.RefreshToken{},
		&auth.AccessLog{},
		&document.Catalog{},
		&document.DocumentType{},
		&document.Periodicity{},
		&document.Document{},
		&participation.Message{},
		&participation.News{},
		&participation.SocialLink{},
	}
}

const connectRetryInterval = 2 * time.Second

func queryLogLevel(cfg *config.Config) gormlogger.LogLevel {
	switch {
	case cfg.IsProduction():
		return gormlogger.Error
	case cfg.LogMode == "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// DSN builds the postgres connection string from configuration
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// Open connects to postgres and sizes the pool. The first ping is retried
// until cfg.DBConnectTimeout elapses, so services may start before the
// database accepts connections.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger:  newQueryLogger(log, queryLogLevel(cfg), cfg.DBSlowQuery),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if cfg.DBConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DBConnectTimeout)
		defer cancel()
	}
	for attempt := 1; ; attempt++ {
		err = sqlDB.PingContext(ctx)
		if err == nil {
			break
		}
		log.Warn("database not ready", "host", cfg.DBHost, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			sqlDB.Close()
			return nil, fmt.Errorf("ping database %s after %d attempts: %w", cfg.DBName, attempt, err)
		case <-time.After(connectRetryInterval):
		}
	}

	log.Info("database connection established", "host", cfg.DBHost, "db", cfg.DBName, "max_open", cfg.DBMaxOpenConns)
	return db, nil
}

// InitDatabase opens the shared connection and migrates the schema
func InitDatabase() error {
	db, err := Open(context.Background(), config.GetConfig(), logger.L())
	if err != nil {
		return err
	}
	DB = db
	return Migrate(DB)
}

// Migrate creates or updates every table of the portal
func Migrate(db *gorm.DB) error {
	log := logger.L()
	migrator := db.Migrator()

	created := 0
	for _, model := range Models() {
		if !migrator.HasTable(model) {
			log.Info("creating table", "model", fmt.Sprintf("%T", model))
			created++
		}
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if created > 0 {
		log.Info("database migrations completed", "tables_created", created)
	} else {
		log.Debug("database schema is up to date")
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// CloseDatabase closes the shared connection, if one was opened
func CloseDatabase() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
