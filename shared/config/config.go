package config

import (
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	LogMode string `env:"LOG_MODE" envDefault:"dev"`

	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"transparencia"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
	DBSlowQuery       time.Duration `env:"DB_SLOW_QUERY" envDefault:"500ms"`

	// JWT
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"change-this-secret"`
	JWTAccessTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"30m"`
	JWTRefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	TOTPIssuer    string        `env:"TOTP_ISSUER" envDefault:"Portal de Transparencia"`

	// Seed administrator
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@transparencia.gob.mx"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin123"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`

	// Descendant cache: memory, redis or none
	DescendantCache            string        `env:"DESCENDANT_CACHE" envDefault:"memory"`
	DescendantCacheTTL         time.Duration `env:"DESCENDANT_CACHE_TTL" envDefault:"5m"`
	DescendantCacheBatchPolicy string        `env:"DESCENDANT_CACHE_BATCH_POLICY" envDefault:"union"`

	// Email
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"noreply@transparencia.gob.mx"`
	EmailFromName string `env:"EMAIL_FROM_NAME" envDefault:"Portal de Transparencia"`
	SMTPHost      string `env:"SMTP_HOST" envDefault:"smtp.example.com"`
	SMTPPort      string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SMTPUseTLS    bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	MailTemplates string `env:"MAIL_TEMPLATES_DIR"`

	// Rate limiting (token bucket)
	RateLimitRPS        float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst      int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	RateLimitBlock      time.Duration `env:"RATE_LIMIT_BLOCK" envDefault:"1m"`
	LoginRateLimitRPS   float64       `env:"LOGIN_RATE_LIMIT_RPS" envDefault:"0.2"`
	LoginRateLimitBurst int           `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"5"`
	LoginRateLimitBlock time.Duration `env:"LOGIN_RATE_LIMIT_BLOCK" envDefault:"15m"`

	// Frontend URL
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Service URLs
	APIGatewayURL           string `env:"API_GATEWAY_URL" envDefault:"http://localhost:8000"`
	AuthServiceURL          string `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:8001"`
	DocumentServiceURL      string `env:"DOCUMENT_SERVICE_URL" envDefault:"http://localhost:8002"`
	ParticipationServiceURL string `env:"PARTICIPATION_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Object storage: minio or memory
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"minio"`

	// MinIO
	MinIOServerURL    string `env:"MINIO_SERVER_URL" envDefault:"http://localhost:9000"`
	MinIORootUser     string `env:"MINIO_ROOT_USER" envDefault:"minioadmin"`
	MinIORootPassword string `env:"MINIO_ROOT_PASSWORD" envDefault:"minioadmin"`
	MinIOUseSSL       bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinIOBucketName   string `env:"MINIO_BUCKET_NAME" envDefault:"transparencia-documentos"`

	// Uploads
	UploadMaxBytes          int64    `env:"UPLOAD_MAX_BYTES" envDefault:"52428800"`
	UploadAllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" envSeparator:"," envDefault:".pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx,.txt,.csv,.json,.xml,.zip,.rar,.7z"`
	NewsImageMaxBytes       int64    `env:"NEWS_IMAGE_MAX_BYTES" envDefault:"5242880"`
	NewsImageExtensions     []string `env:"NEWS_IMAGE_EXTENSIONS" envSeparator:"," envDefault:".jpg,.jpeg,.png,.gif,.webp"`
	DefaultInstitution      string   `env:"DEFAULT_INSTITUTION" envDefault:"Gobierno del Estado de Morelos"`

	// Tracing
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLER_RATIO" envDefault:"0.1"`
}

var cfg *Config

// LoadConfig loads configuration from .env files and the environment
func LoadConfig() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("environment loaded from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("warning: .env file not found, using system environment variables")
	}

	loaded, err := Parse()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	cfg = loaded
}

// Parse builds a Config from the current environment without touching .env files
func Parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	for i, ext := range c.UploadAllowedExtensions {
		c.UploadAllowedExtensions[i] = normalizeExtension(ext)
	}
	for i, ext := range c.NewsImageExtensions {
		c.NewsImageExtensions[i] = normalizeExtension(ext)
	}
	return c, nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// SetConfig replaces the process configuration, used by tests
func SetConfig(c *Config) {
	cfg = c
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Port extracts the port of a service URL such as http://localhost:8002
func Port(serviceURL string) string {
	parts := strings.Split(serviceURL, ":")
	return strings.TrimRight(parts[len(parts)-1], "/")
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
