package policy

import (
	"context"
	"strings"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/gate"
)

// Ownable is implemented by records that belong to a submitter.
type Ownable interface {
	GetSubmitter() string
}

// OwnershipPolicy lets anyone view a record but restricts changes to the
// submitter, compared case-insensitively by email.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

func (p *OwnershipPolicy) Can(_ context.Context, s auth.Subject, action gate.Action, resource any) bool {
	switch action {
	case gate.ActionView, gate.ActionList, gate.ActionCreate:
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	owner := strings.TrimSpace(ownable.GetSubmitter())
	return owner != "" && strings.EqualFold(owner, strings.TrimSpace(s.Email))
}

// AdminBypassPolicy allows admins everything and defers to inner otherwise.
type AdminBypassPolicy struct {
	inner   gate.Policy[auth.Subject]
	isAdmin func(ctx context.Context, s auth.Subject) bool
}

func NewAdminBypassPolicy(inner gate.Policy[auth.Subject], isAdmin func(ctx context.Context, s auth.Subject) bool) *AdminBypassPolicy {
	return &AdminBypassPolicy{inner: inner, isAdmin: isAdmin}
}

func (p *AdminBypassPolicy) Can(ctx context.Context, s auth.Subject, action gate.Action, resource any) bool {
	if p.isAdmin(ctx, s) {
		return true
	}
	return p.inner.Can(ctx, s, action, resource)
}
