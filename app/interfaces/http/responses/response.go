package responses

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	// RetryAfter mirrors the Retry-After header in seconds.
	RetryAfter int    `json:"retry_after,omitempty"`
	Status     string `json:"status,omitempty"`
}

type GeneralResponse[T any] struct {
	Status string `json:"status"`
	Result T      `json:"result"`
}

const (
	ResponseCodeOk   = "000000"
	ResponseStatusOk = "ok"
	// ResponseStatusGenerating tells clients another request is producing
	// the content and they should retry shortly.
	ResponseStatusGenerating = "generating"
)
