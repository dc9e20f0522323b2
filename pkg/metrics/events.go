package metrics

// Event names shared across components. Component-specific events are
// recorded with literal snake_case names at the call site.
const (
	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
)
