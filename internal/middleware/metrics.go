package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commentboard_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command"})

	// ActiveWebSockets tracks the number of open realtime connections on this instance.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "commentboard_active_websockets",
		Help: "Number of open websocket connections",
	})
)

var (
	httpMetrics     *fiberprometheus.FiberPrometheus
	httpMetricsOnce sync.Once
)

// InitMetrics returns the HTTP metrics collector. The collector registers
// with the default Prometheus registry, so it is built once per process and
// the first serviceName wins.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	if prom == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return prom.Middleware
}
