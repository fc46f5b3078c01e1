package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationPrefix = "github.com/noah-isme/relawan-api/internal/"

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Tracer returns a tracer from the global provider scoped to the given component.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationPrefix + component)
}
