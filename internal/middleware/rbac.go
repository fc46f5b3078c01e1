package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/relawan-api/internal/observability"
	"github.com/noah-isme/relawan-api/internal/rbac"
	"github.com/noah-isme/relawan-api/internal/utils"
)

// ForbiddenMessage is the body message of every gate denial.
const ForbiddenMessage = "Forbidden"

// RequireRoles guards a route with the role gate. Each spec may list several
// roles delimited by "|" or ","; an empty requirement lets every request through,
// including anonymous ones.
func RequireRoles(logger zerolog.Logger, specs ...string) fiber.Handler {
	required := rbac.ParseRoles(specs...)
	gateLogger := logger.With().Str("component", "access_gate").Str("required", required.String()).Logger()

	return func(c *fiber.Ctx) error {
		principal := PrincipalFromContext(c)

		err := rbac.Check(principal, required)
		if err == nil {
			observability.AccessDecisions().WithLabelValues(rbac.Allow.String(), "granted").Inc()
			return c.Next()
		}

		reason := "role"
		if errors.Is(err, rbac.ErrUnauthenticated) {
			reason = "anonymous"
		}
		observability.AccessDecisions().WithLabelValues(rbac.Deny.String(), reason).Inc()

		event := gateLogger.Debug().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", routeTemplate(c)).
			Str("reason", reason)
		if principal != nil {
			role, _ := rbac.ResolveRole(principal)
			event = event.Uint("user_id", principal.UserID).Str("role", role)
		}
		event.Msg("access denied")

		return utils.SendError(c, fiber.StatusForbidden, ForbiddenMessage)
	}
}
