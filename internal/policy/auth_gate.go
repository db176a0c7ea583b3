package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/gate"
	"github.com/diewo77/training-tracker/internal/models"
)

// Resource types checked by the gate.
const (
	ResourceForm   = "form"
	ResourceExport = "export"
	ResourceAdmin  = "admin"
	ResourceLookup = "lookup"
)

var (
	// RoleAdmin is held by every email in the admins table.
	RoleAdmin = gate.NewRole("admin", gate.PermissionSuperAdmin)

	// RoleStaff is held by every other logged in user. Update, delete and
	// recover are further restricted to the submitter by OwnershipPolicy.
	RoleStaff = gate.NewRole("staff",
		gate.NewPermission(ResourceForm, gate.ActionView),
		gate.NewPermission(ResourceForm, gate.ActionList),
		gate.NewPermission(ResourceForm, gate.ActionCreate),
		gate.NewPermission(ResourceForm, gate.ActionUpdate),
		gate.NewPermission(ResourceForm, gate.ActionDelete),
		gate.NewPermission(ResourceForm, gate.ActionRecover),
		gate.NewPermission(ResourceLookup, gate.ActionView),
	)
)

type UserSource interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

type AdminSource interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// AuthGate holds the gate with its cached role resolver.
type AuthGate struct {
	Gate          *gate.Gate[auth.Subject]
	CacheResolver *gate.CachedResolver[auth.Subject]
	users         UserSource
}

// NewAuthGate resolves roles from the admins table, caching them for
// cacheTTL, and registers the form ownership policy with admin bypass.
func NewAuthGate(users UserSource, admins AdminSource, cacheTTL time.Duration) *AuthGate {
	resolver := gate.ResolverFunc[auth.Subject](func(ctx context.Context, s auth.Subject) (gate.Profile, error) {
		ok, err := admins.IsAdmin(ctx, s.Email)
		if err != nil {
			return nil, err
		}
		if ok {
			return RoleAdmin, nil
		}
		return RoleStaff, nil
	})
	cached := gate.NewCachedResolver[auth.Subject](resolver, cacheTTL)
	g := gate.New[auth.Subject](cached)
	g.Register(ResourceForm, NewAdminBypassPolicy(NewOwnershipPolicy(), g.IsSuperAdmin))

	return &AuthGate{Gate: g, CacheResolver: cached, users: users}
}

// Middleware loads the session user and stores the subject in context.
// It must run after auth.Middleware.
func (ag *AuthGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := auth.UserIDFromContext(r.Context()); ok {
			if u, err := ag.users.Get(r.Context(), uid); err == nil {
				r = r.WithContext(auth.WithSubject(r.Context(), auth.Subject{ID: u.ID, Email: u.Email}))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize checks the current user against action on resource.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	s, ok := auth.SubjectFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, s, action, resourceType, resource)
}

// AuthorizeForm checks action on one training form.
func (ag *AuthGate) AuthorizeForm(ctx context.Context, action gate.Action, f *models.TrainingForm) error {
	return ag.Authorize(ctx, action, ResourceForm, f)
}

func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanProfile checks only role permissions.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	s, ok := auth.SubjectFromContext(ctx)
	return ok && ag.Gate.CanProfile(ctx, s, action, resourceType)
}

// IsAdmin reports whether the current user is an admin.
func (ag *AuthGate) IsAdmin(ctx context.Context) bool {
	s, ok := auth.SubjectFromContext(ctx)
	return ok && ag.Gate.IsSuperAdmin(ctx, s)
}

// InvalidateAll clears cached roles; called when admins are added or removed.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// RequirePermission returns middleware that checks a role permission.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.CanProfile(r.Context(), action, resourceType) {
				auth.Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin returns middleware that only lets admins through.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.IsAdmin(r.Context()) {
				auth.Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
