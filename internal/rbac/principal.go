package rbac

// RoleRef mirrors a joined role relation carried on a user record.
type RoleRef struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
}

// Principal is the actor of a request. A nil *Principal means anonymous.
//
// Upstream user records are not consistent about where the role lives, so the
// role may be present as a plain field, a nested relation or a denormalized
// synonym column. Use ResolveRole instead of reading the fields directly.
type Principal struct {
	UserID   uint
	Name     string
	Role     string
	RoleRef  *RoleRef
	RoleName string
	RoleID   uint
}

type roleExtractor func(p *Principal) string

// Precedence of the role shapes; the first non-empty match wins.
var roleExtractors = []roleExtractor{
	func(p *Principal) string {
		if p.RoleRef == nil {
			return ""
		}
		return p.RoleRef.Role
	},
	func(p *Principal) string { return p.Role },
	func(p *Principal) string { return p.RoleName },
	func(p *Principal) string {
		id := p.RoleID
		if id == 0 && p.RoleRef != nil {
			id = p.RoleRef.ID
		}
		if role, ok := LookupID(id); ok {
			return role.Name
		}
		return ""
	},
}

// ResolveRole normalizes the principal's role to a single canonical string.
func ResolveRole(p *Principal) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, extract := range roleExtractors {
		if role := normalizeName(extract(p)); role != "" {
			return role, true
		}
	}
	return "", false
}

// ResolveRoleID returns the registry id of the principal's resolved role.
func ResolveRoleID(p *Principal) (uint, bool) {
	name, ok := ResolveRole(p)
	if !ok {
		return 0, false
	}
	role, ok := Lookup(name)
	if !ok {
		return 0, false
	}
	return role.ID, true
}

// HasRole reports whether the principal's resolved role is one of the given roles.
func (p *Principal) HasRole(roles ...string) bool {
	return Authorize(p, ParseRoles(roles...)) == Allow
}
