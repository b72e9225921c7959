package httpclients

import (
	"time"

	"resty.dev/v3"
)

const defaultTimeout = 60 * time.Second

// NewClient returns a resty client tagged with the caller name in the
// User-Agent header. A zero timeout uses the package default.
func NewClient(name string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "solara-insights-gateway/"+name).
		SetHeader("Accept", "application/json")
}
