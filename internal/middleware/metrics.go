package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis calls by command or subsystem.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"command"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_http_route_duration_seconds",
		Help:    "HTTP request latency by matched route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide fiberprometheus instance. Its
// collectors register globally, so repeated calls share one instance.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request counts through fiberprometheus and
// per-route latency keyed by the matched pattern rather than the raw path.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := p.Middleware(c)

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(c.Method(), route, strconv.Itoa(c.Response().StatusCode())).
			Observe(time.Since(start).Seconds())
		return err
	}
}
