// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Profiles recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	App          AppConfig
	Directory    DirectoryConfig
	Mail         MailConfig
	Storage      StorageConfig
	Export       ExportConfig
	Housekeeping HousekeepingConfig
	Graph        GraphConfig
	Cache        CacheConfig
	Logging      LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings for sqlite or PostgreSQL.
type DatabaseConfig struct {
	Driver   string // sqlite | postgres
	Path     string // sqlite file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name          string
	Env           string
	Build         string
	Migrations    string // auto | sql | off
	SessionSecret string
	DefaultAdmins []string
}

// DirectoryConfig configures LDAP authentication.
type DirectoryConfig struct {
	Host          string
	Port          int
	BaseDN        string
	Domain        string
	UseSSL        bool
	RequiredGroup string
	// BypassUsers maps a lower-case email to a bcrypt hash.
	BypassUsers map[string]string
}

// MailConfig configures outgoing notifications.
type MailConfig struct {
	Backend            string // console | smtp | sendgrid
	Server             string
	Port               int
	Username           string
	Password           string
	DefaultSender      string
	SendgridAPIKey     string
	DevRecipients      []string
	ExcludedSubmitters []string
}

// StorageConfig configures the attachment store.
type StorageConfig struct {
	Backend          string // local | minio
	UploadFolder     string
	MaxContentLength int64
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool
}

// ExportConfig configures the Claim 5 workbook export.
type ExportConfig struct {
	TemplatePath string
}

// HousekeepingConfig configures backups and retention.
type HousekeepingConfig struct {
	BackupDir     string
	RetentionDays int
	Schedule      string
	Enabled       bool
}

// GraphConfig configures the Microsoft Graph employee refresh.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteFilter   string
	DomainFilter string
	CSVPath      string
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	Backend       string // memory | redis
	TTL           time.Duration
	RedisHost     string
	RedisPort     int
	RedisUser     string
	RedisPassword string
	RedisDB       int
}

// LoggingConfig configures logging and error reporting.
type LoggingConfig struct {
	File         string
	RollbarToken string
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool { return c.App.Env == EnvProduction }

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from the environment, after loading
// .env.<APP_ENV> and .env when present.
func Load() *Config {
	loadDotEnv()
	return FromViper(newViper())
}

func loadDotEnv() {
	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = EnvDevelopment
	}
	for _, p := range []string{".env." + env, ".env"} {
		path := filepath.Clean(p)
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				log.Fatalf("config.godotenv(%s): %v", path, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", path, err)
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("APP_NAME", "Training Tracker")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_BUILD", "dev")
	v.SetDefault("MIGRATIONS", "auto")
	v.SetDefault("SESSION_SECRET", "devsessionsecret")
	v.SetDefault("DEFAULT_ADMINS", "")

	v.SetDefault("HOST", "localhost")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60)

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "training_forms.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "training")
	v.SetDefault("DB_PASSWORD", "training")
	v.SetDefault("DB_NAME", "training")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DEBUG", false)

	v.SetDefault("LDAP_HOST", "localhost")
	v.SetDefault("LDAP_PORT", 3268)
	v.SetDefault("LDAP_BASE_DN", "DC=example,DC=com")
	v.SetDefault("LDAP_DOMAIN", "example.com")
	v.SetDefault("LDAP_USE_SSL", false)
	v.SetDefault("LDAP_REQUIRED_GROUP", "")
	v.SetDefault("BYPASS_USERS", "")

	v.SetDefault("MAIL_BACKEND", "console")
	v.SetDefault("MAIL_SERVER", "localhost")
	v.SetDefault("MAIL_PORT", 25)
	v.SetDefault("MAIL_USERNAME", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_DEFAULT_SENDER", "noreply@localhost")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFY_DEV_RECIPIENTS", "")
	v.SetDefault("NOTIFY_EXCLUDED_SUBMITTERS", "user@test.com")

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOAD_FOLDER", "uploads")
	v.SetDefault("MAX_CONTENT_LENGTH", 32<<20)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "training-attachments")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("EXPORT_TEMPLATE_PATH", "Claim-Form-5-Training new GBER Rules.xlsx")

	v.SetDefault("BACKUP_DIR", "backups")
	v.SetDefault("RETENTION_DAYS", 180)
	v.SetDefault("HOUSEKEEPING_CRON", "0 2 * * *")
	v.SetDefault("HOUSEKEEPING_ENABLED", true)

	v.SetDefault("AZURE_TENANT_ID", "")
	v.SetDefault("AZURE_CLIENT_ID", "")
	v.SetDefault("AZURE_CLIENT_SECRET", "")
	v.SetDefault("GRAPH_SITE_FILTER", "")
	v.SetDefault("GRAPH_DOMAIN_FILTER", "")
	v.SetDefault("EMPLOYEE_CSV_PATH", "employees.csv")

	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("LOOKUP_CACHE_TTL", 24*time.Hour)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_USER", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_FILE", "")
	v.SetDefault("ROLLBAR_TOKEN", "")

	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:         v.GetString("HOST"),
			Port:         v.GetString("PORT"),
			ReadTimeout:  v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetInt("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetInt("SERVER_IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Path:     v.GetString("DB_PATH"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Debug:    v.GetBool("DB_DEBUG"),
		},
		App: AppConfig{
			Name:          v.GetString("APP_NAME"),
			Env:           strings.ToLower(v.GetString("APP_ENV")),
			Build:         v.GetString("APP_BUILD"),
			Migrations:    strings.ToLower(v.GetString("MIGRATIONS")),
			SessionSecret: v.GetString("SESSION_SECRET"),
			DefaultAdmins: splitList(v.GetString("DEFAULT_ADMINS")),
		},
		Directory: DirectoryConfig{
			Host:          v.GetString("LDAP_HOST"),
			Port:          v.GetInt("LDAP_PORT"),
			BaseDN:        v.GetString("LDAP_BASE_DN"),
			Domain:        v.GetString("LDAP_DOMAIN"),
			UseSSL:        v.GetBool("LDAP_USE_SSL"),
			RequiredGroup: v.GetString("LDAP_REQUIRED_GROUP"),
			BypassUsers:   parseBypassUsers(v.GetString("BYPASS_USERS")),
		},
		Mail: MailConfig{
			Backend:            strings.ToLower(v.GetString("MAIL_BACKEND")),
			Server:             v.GetString("MAIL_SERVER"),
			Port:               v.GetInt("MAIL_PORT"),
			Username:           v.GetString("MAIL_USERNAME"),
			Password:           v.GetString("MAIL_PASSWORD"),
			DefaultSender:      v.GetString("MAIL_DEFAULT_SENDER"),
			SendgridAPIKey:     v.GetString("SENDGRID_API_KEY"),
			DevRecipients:      splitList(v.GetString("NOTIFY_DEV_RECIPIENTS")),
			ExcludedSubmitters: splitList(v.GetString("NOTIFY_EXCLUDED_SUBMITTERS")),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(v.GetString("STORAGE_BACKEND")),
			UploadFolder:     v.GetString("UPLOAD_FOLDER"),
			MaxContentLength: v.GetInt64("MAX_CONTENT_LENGTH"),
			MinioEndpoint:    v.GetString("MINIO_ENDPOINT"),
			MinioAccessKey:   v.GetString("MINIO_ACCESS_KEY"),
			MinioSecretKey:   v.GetString("MINIO_SECRET_KEY"),
			MinioBucket:      v.GetString("MINIO_BUCKET"),
			MinioUseSSL:      v.GetBool("MINIO_USE_SSL"),
		},
		Export: ExportConfig{
			TemplatePath: v.GetString("EXPORT_TEMPLATE_PATH"),
		},
		Housekeeping: HousekeepingConfig{
			BackupDir:     v.GetString("BACKUP_DIR"),
			RetentionDays: v.GetInt("RETENTION_DAYS"),
			Schedule:      v.GetString("HOUSEKEEPING_CRON"),
			Enabled:       v.GetBool("HOUSEKEEPING_ENABLED"),
		},
		Graph: GraphConfig{
			TenantID:     v.GetString("AZURE_TENANT_ID"),
			ClientID:     v.GetString("AZURE_CLIENT_ID"),
			ClientSecret: v.GetString("AZURE_CLIENT_SECRET"),
			SiteFilter:   v.GetString("GRAPH_SITE_FILTER"),
			DomainFilter: v.GetString("GRAPH_DOMAIN_FILTER"),
			CSVPath:      v.GetString("EMPLOYEE_CSV_PATH"),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(v.GetString("CACHE_BACKEND")),
			TTL:           v.GetDuration("LOOKUP_CACHE_TTL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetInt("REDIS_PORT"),
			RedisUser:     v.GetString("REDIS_USER"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Logging: LoggingConfig{
			File:         v.GetString("LOG_FILE"),
			RollbarToken: v.GetString("ROLLBAR_TOKEN"),
		},
	}
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBypassUsers reads "email:hash,email:hash". bcrypt hashes contain no
// commas, and the first colon separates the email.
func parseBypassUsers(raw string) map[string]string {
	users := map[string]string{}
	for _, entry := range splitList(raw) {
		email, hash, ok := strings.Cut(entry, ":")
		if !ok || hash == "" {
			log.Printf("config: ignoring malformed bypass entry for %q", email)
			continue
		}
		users[strings.ToLower(strings.TrimSpace(email))] = strings.TrimSpace(hash)
	}
	return users
}
