package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/iobridge/iobridge/pkg/infra/prometheus"
)

type metricsMiddleware struct {
	logger *logrus.Logger
}

func NewMetricsMiddleware(logger *logrus.Logger) Middleware {
	return &metricsMiddleware{logger: logger}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		prometheus.RequestTotal.WithLabelValues(
			c.Method(),
			statusClass(c.Response().StatusCode()),
		).Inc()

		return err
	}
}

// statusClass collapses status codes into their class ("2xx", "4xx", ...) to
// keep label cardinality down.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
