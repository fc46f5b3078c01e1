package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/relawan-api/internal/rbac"
	"github.com/noah-isme/relawan-api/internal/utils"
)

const principalKey = "principal"

// JWTProtected returns a middleware that validates JWT bearer tokens and binds the request principal.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		principal := principalFromClaims(claims)
		if principal == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}

		SetPrincipal(c, principal)
		return c.Next()
	}
}

// SetPrincipal binds an authenticated principal to the request.
func SetPrincipal(c *fiber.Ctx, principal *rbac.Principal) {
	if principal == nil {
		return
	}
	c.Locals(principalKey, principal)
	c.Locals("user_id", principal.UserID)
	if role, ok := rbac.ResolveRole(principal); ok {
		c.Locals("user_role", role)
	}
}

// PrincipalFromContext returns the request principal, or nil for anonymous requests.
func PrincipalFromContext(c *fiber.Ctx) *rbac.Principal {
	if c == nil {
		return nil
	}
	if principal, ok := c.Locals(principalKey).(*rbac.Principal); ok {
		return principal
	}
	return nil
}

// principalFromClaims maps token claims onto a principal, keeping every role shape the issuer used.
func principalFromClaims(claims jwt.MapClaims) *rbac.Principal {
	userID := extractUserIDFromClaims(claims)
	if userID == nil || *userID == 0 {
		return nil
	}

	principal := &rbac.Principal{UserID: *userID}
	if name, ok := claims["name"].(string); ok {
		principal.Name = strings.TrimSpace(name)
	}

	switch role := claims["role"].(type) {
	case string:
		principal.Role = role
	case map[string]interface{}:
		ref := &rbac.RoleRef{}
		if name, ok := role["role"].(string); ok {
			ref.Role = name
		} else if name, ok := role["name"].(string); ok {
			ref.Role = name
		}
		if id, err := normalizeUserID(role["id"]); err == nil {
			ref.ID = id
		}
		principal.RoleRef = ref
	}

	if principal.Role == "" {
		if roles, ok := claims["roles"]; ok {
			principal.Role = firstRole(roles)
		}
	}
	if name, ok := claims["role_name"].(string); ok {
		principal.RoleName = name
	}
	if id, err := normalizeUserID(claims["role_id"]); err == nil {
		principal.RoleID = id
	}

	return principal
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func firstRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := strings.TrimSpace(str); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
