package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/iobridge/iobridge/pkg/common"
)

type requestIDMiddleware struct{}

func NewRequestIDMiddleware() Middleware {
	return &requestIDMiddleware{}
}

// Middleware assigns every request an identifier for log correlation and
// echoes it back to the caller.
func (m *requestIDMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(common.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(string(common.RequestIdContextKey), requestID)
		c.Set(common.RequestIDHeader, requestID)
		return c.Next()
	}
}
