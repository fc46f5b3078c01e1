package rbac

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// RoleSet is an ordered, de-duplicated list of canonical role tokens.
type RoleSet []string

// ParseRoles builds a RoleSet from role tokens or delimited strings using "|" or ",".
// Numeric tokens naming a registry id are canonicalized to the role name.
func ParseRoles(specs ...string) RoleSet {
	tokens := make([]string, 0, len(specs))
	for _, spec := range specs {
		parts := strings.FieldsFunc(spec, func(r rune) bool {
			return r == '|' || r == ','
		})
		for _, part := range parts {
			if token := canonicalToken(part); token != "" {
				tokens = append(tokens, token)
			}
		}
	}

	return RoleSet(lo.Uniq(tokens))
}

// Empty reports whether the set carries no restriction.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role string) bool {
	return lo.Contains(s, canonicalToken(role))
}

// String renders the set in its "|" delimited form.
func (s RoleSet) String() string {
	return strings.Join(s, "|")
}

func canonicalToken(token string) string {
	token = normalizeName(token)
	if token == "" {
		return ""
	}
	if id, err := strconv.ParseUint(token, 10, 64); err == nil {
		if role, ok := LookupID(uint(id)); ok {
			return role.Name
		}
	}
	return token
}
