package rbac

import "errors"

var (
	// ErrUnauthenticated is returned when a restricted resource is requested without a principal.
	ErrUnauthenticated = errors.New("rbac: principal required")
	// ErrUnauthorized is returned when the principal's role is not permitted.
	ErrUnauthorized = errors.New("rbac: role not permitted")
)

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Check evaluates the principal against the required roles.
// An empty required set places no restriction, even on anonymous callers.
func Check(p *Principal, required RoleSet) error {
	if required.Empty() {
		return nil
	}
	if p == nil {
		return ErrUnauthenticated
	}

	role, ok := ResolveRole(p)
	if !ok || !required.Contains(role) {
		return ErrUnauthorized
	}
	return nil
}

// Authorize folds Check into an allow/deny decision.
func Authorize(p *Principal, required RoleSet) Decision {
	if Check(p, required) != nil {
		return Deny
	}
	return Allow
}
