// Package gate authorizes actions in two steps: the user's profile must
// grant "resource:action", then a resource policy registered for the
// resource type may inspect the concrete record (ownership).
//
// The user type is generic so the host app decides what identifies a
// subject; the training tracker uses a small comparable struct.
package gate

import "context"

// Policy decides on a concrete resource after the profile check passed.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register sets the policy for resourceType, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

func (g *Gate[U]) profile(ctx context.Context, user U) Profile {
	var zero U
	if user == zero {
		return nil
	}
	p, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil
	}
	return p
}

// Authorize returns ErrUnauthorized unless user may perform action on
// resource. A nil resource only checks the profile.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	p := g.profile(ctx, user)
	if p == nil || !p.HasPermission(NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	if resource == nil {
		return nil
	}
	if policy, ok := g.policies[resourceType]; ok && !policy.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks only the profile permission, for showing or hiding UI
// before a record is loaded.
func (g *Gate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	p := g.profile(ctx, user)
	return p != nil && p.HasPermission(NewPermission(resourceType, action))
}

// IsSuperAdmin reports whether user's profile holds "*:*".
func (g *Gate[U]) IsSuperAdmin(ctx context.Context, user U) bool {
	p := g.profile(ctx, user)
	return p != nil && p.HasPermission(PermissionSuperAdmin)
}
