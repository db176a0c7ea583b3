package gate

import "errors"

// ErrUnauthorized is returned by Gate.Authorize for any denied check,
// including an unresolvable role.
var ErrUnauthorized = errors.New("action not permitted for this user")
