package gate

import "context"

// Profile is the set of permissions a user holds.
type Profile interface {
	Name() string
	HasPermission(permission Permission) bool
}

// ProfileResolver maps a user to a profile.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// ResolverFunc adapts a function to ProfileResolver.
type ResolverFunc[U any] func(ctx context.Context, user U) (Profile, error)

func (f ResolverFunc[U]) Resolve(ctx context.Context, user U) (Profile, error) { return f(ctx, user) }

// Role is a named, fixed list of permissions.
type Role struct {
	name        string
	permissions []Permission
}

func NewRole(name string, permissions ...Permission) *Role {
	return &Role{name: name, permissions: permissions}
}

func (r *Role) Name() string { return r.name }

func (r *Role) Permissions() []Permission {
	return append([]Permission(nil), r.permissions...)
}

func (r *Role) HasPermission(requested Permission) bool {
	for _, p := range r.permissions {
		if p.Matches(requested) {
			return true
		}
	}
	return false
}
