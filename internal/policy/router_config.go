package policy

import (
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/directory"
	"github.com/diewo77/training-tracker/internal/export"
	"github.com/diewo77/training-tracker/internal/handlers"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/lookup"
	"github.com/diewo77/training-tracker/internal/notify"
	"github.com/diewo77/training-tracker/internal/services"
	"github.com/diewo77/training-tracker/internal/storage"
)

// RoleCacheTTL is how long a resolved role is reused.
const RoleCacheTTL = 5 * time.Minute

// Deps are the connections the router is built from.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  storage.Store
	Cache  lookup.Backend
	Mailer notify.Mailer
	Log    logging.Logger

	// Directory replaces the LDAP authenticator when set.
	Directory handlers.Directory
}

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	AuthGate *AuthGate

	AuthHandler   *handlers.AuthHandler
	FormHandler   *handlers.FormHandler
	UploadHandler *handlers.UploadHandler
	ExportHandler *handlers.ExportHandler
	LookupHandler *handlers.LookupHandler
	AdminHandler  *handlers.AdminHandler

	Users   *services.UserService
	Forms   *services.FormService
	Lookups *lookup.Service
}

// NewRouterConfig wires the services, the authorization gate and every
// handler.
func NewRouterConfig(d Deps) *RouterConfig {
	cfg, log := d.Config, d.Log
	if log == nil {
		log = logging.Discard
	}

	users := services.NewUserService(d.DB)
	admins := services.NewAdminService(d.DB)
	forms := services.NewFormService(d.DB)
	employees := services.NewEmployeeService(d.DB)
	catalog := services.NewCatalogService(d.DB)

	authGate := NewAuthGate(users, admins, RoleCacheTTL)

	dir := d.Directory
	if dir == nil {
		dir = directory.NewLDAPAuthenticator(cfg.Directory, cfg.IsProduction(), admins, log)
	}
	mailer := d.Mailer
	if mailer == nil {
		mailer = notify.NewMailer(cfg.Mail, os.Stdout)
	}
	notifier := notify.NewSubmissionNotifier(mailer, admins, cfg.IsProduction(), cfg.Mail.DevRecipients, cfg.Mail.ExcludedSubmitters, log)
	cache := d.Cache
	if cache == nil {
		cache = lookup.NewMemoryBackend(time.Now)
	}
	lookups := lookup.NewService(cache, cfg.Cache.TTL, employees, catalog, cfg.Graph.CSVPath, log)

	return &RouterConfig{
		AuthGate:      authGate,
		AuthHandler:   handlers.NewAuthHandler(dir, users, log),
		FormHandler:   handlers.NewFormHandler(forms, d.Store, notifier, authGate, cfg.Storage.MaxContentLength, log),
		UploadHandler: handlers.NewUploadHandler(d.Store, log),
		ExportHandler: handlers.NewExportHandler(export.NewService(forms, cfg.Export.TemplatePath, log), log),
		LookupHandler: handlers.NewLookupHandler(lookups, log),
		AdminHandler:  handlers.NewAdminHandler(admins, authGate, log),
		Users:         users,
		Forms:         forms,
		Lookups:       lookups,
	}
}
