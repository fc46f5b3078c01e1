package rbac

import "strings"

// Canonical role names.
const (
	RoleSuperadmin           = "superadmin"
	RoleAdminPaslon          = "admin_paslon"
	RoleAdminAPK             = "admin_apk"
	RoleKunjunganKoordinator = "kunjungan_koordinator"
	RoleAPKKoordinator       = "apk_koordinator"
	RoleRelawan              = "relawan"
	RoleAPKKurir             = "apk_kurir"
)

// Role is an immutable entry of the role reference table.
type Role struct {
	ID    uint
	Name  string
	Label string
}

var roles = []Role{
	{ID: 1, Name: RoleSuperadmin, Label: "Super Admin"},
	{ID: 2, Name: RoleAdminPaslon, Label: "Admin Paslon"},
	{ID: 3, Name: RoleAdminAPK, Label: "Admin APK"},
	{ID: 4, Name: RoleKunjunganKoordinator, Label: "Koordinator Kunjungan"},
	{ID: 5, Name: RoleAPKKoordinator, Label: "Koordinator APK"},
	{ID: 6, Name: RoleRelawan, Label: "Relawan"},
	{ID: 7, Name: RoleAPKKurir, Label: "Kurir APK"},
}

var (
	rolesByName = make(map[string]Role, len(roles))
	rolesByID   = make(map[uint]Role, len(roles))
)

func init() {
	for _, role := range roles {
		rolesByName[role.Name] = role
		rolesByID[role.ID] = role
	}
}

// All returns a copy of the registry in id order.
func All() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Lookup finds a role by its canonical name. Matching ignores case and surrounding whitespace.
func Lookup(name string) (Role, bool) {
	role, ok := rolesByName[normalizeName(name)]
	return role, ok
}

// LookupID finds a role by its numeric identifier.
func LookupID(id uint) (Role, bool) {
	role, ok := rolesByID[id]
	return role, ok
}

// Label returns the human readable label of a role, or the name itself when the role is unknown.
func Label(name string) string {
	if role, ok := Lookup(name); ok {
		return role.Label
	}
	return name
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
