package gate

import "strings"

// Permission grants an action on a resource type, written "resource:action".
type Permission string

const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether p grants requested. "*:*" grants everything and
// "form:*" every form action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res == reqRes && string(act) == WildcardAll
}
