package common

const (
	SessionIDHeader = "X-Session-Id"
	RequestIDHeader = "X-Request-Id"
)
