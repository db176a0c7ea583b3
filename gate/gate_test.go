package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/training-tracker/gate"
)

type subject struct {
	ID    uint
	Email string
}

type record struct{ owner string }

var (
	reviewer = gate.NewRole("admin", gate.PermissionSuperAdmin)
	staff    = gate.NewRole("staff",
		gate.NewPermission("form", gate.ActionView),
		gate.NewPermission("form", gate.ActionUpdate),
	)
)

func newGate() *gate.Gate[subject] {
	g := gate.New[subject](gate.ResolverFunc[subject](func(_ context.Context, s subject) (gate.Profile, error) {
		switch s.Email {
		case "boss@example.com":
			return reviewer, nil
		case "broken@example.com":
			return nil, errors.New("db down")
		}
		return staff, nil
	}))
	g.Register("form", gate.PolicyFunc[subject](func(_ context.Context, s subject, _ gate.Action, res any) bool {
		r, ok := res.(*record)
		return ok && r.owner == s.Email
	}))
	return g
}

func TestGate_Authorize(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	ann := subject{ID: 1, Email: "ann@example.com"}
	boss := subject{ID: 2, Email: "boss@example.com"}
	mine := &record{owner: "ann@example.com"}
	theirs := &record{owner: "bob@example.com"}

	tests := []struct {
		name   string
		user   subject
		action gate.Action
		res    any
		want   error
	}{
		{"zero user", subject{}, gate.ActionView, nil, gate.ErrUnauthorized},
		{"resolver error", subject{ID: 3, Email: "broken@example.com"}, gate.ActionView, nil, gate.ErrUnauthorized},
		{"profile only", ann, gate.ActionUpdate, nil, nil},
		{"missing permission", ann, gate.ActionApprove, nil, gate.ErrUnauthorized},
		{"owner", ann, gate.ActionUpdate, mine, nil},
		{"not owner", ann, gate.ActionUpdate, theirs, gate.ErrUnauthorized},
		{"superadmin still meets policy", boss, gate.ActionUpdate, theirs, gate.ErrUnauthorized},
		{"superadmin without record", boss, gate.ActionExport, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Authorize(ctx, tt.user, tt.action, "form", tt.res); err != tt.want {
				t.Errorf("Authorize = %v, want %v", err, tt.want)
			}
		})
	}

	if !g.CanProfile(ctx, ann, gate.ActionView, "form") || g.CanProfile(ctx, ann, gate.ActionView, "admin") {
		t.Error("CanProfile mismatch for staff")
	}
	if !g.IsSuperAdmin(ctx, boss) || g.IsSuperAdmin(ctx, ann) {
		t.Error("IsSuperAdmin mismatch")
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		held, requested gate.Permission
		want            bool
	}{
		{"*:*", "form:approve", true},
		{"form:*", "form:delete", true},
		{"form:*", "admin:manage", false},
		{"form:view", "form:view", true},
		{"form:view", "form:update", false},
		{"garbage", "form:view", false},
	}
	for _, tt := range tests {
		if got := tt.held.Matches(tt.requested); got != tt.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tt.held, tt.requested, got, tt.want)
		}
	}
	if res, act := gate.NewPermission("export", gate.ActionExport).Parse(); res != "export" || act != gate.ActionExport {
		t.Errorf("Parse = %q %q", res, act)
	}
}

func TestCachedResolver(t *testing.T) {
	calls := 0
	inner := gate.ResolverFunc[uint](func(context.Context, uint) (gate.Profile, error) {
		calls++
		return staff, nil
	})
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cached := gate.NewCachedResolver[uint](inner, 5*time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.Resolve(ctx, 1); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("inner called %d times, want 1", calls)
	}

	now = now.Add(5 * time.Minute)
	_, _ = cached.Resolve(ctx, 1)
	if calls != 2 {
		t.Fatalf("expired entry not refreshed, calls = %d", calls)
	}

	cached.Invalidate(1)
	_, _ = cached.Resolve(ctx, 1)
	cached.InvalidateAll()
	_, _ = cached.Resolve(ctx, 1)
	if calls != 4 {
		t.Fatalf("invalidation not honoured, calls = %d", calls)
	}
}
