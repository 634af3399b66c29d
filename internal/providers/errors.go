package providers

import (
	"context"
	"errors"
	"strings"
)

// ErrorType buckets a provider failure so the manager can decide between
// failing over and giving up.
type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"

	// ErrorUnconfigured means the provider cannot be called at all, for example
	// because its API key is not set.
	ErrorUnconfigured ErrorType = "unconfigured"
)

// ErrProviderUnconfigured is wrapped by providers that lack the settings to make a call.
var ErrProviderUnconfigured = errors.New("provider not configured")

// Order matters: a 429 body that mentions "timeout" is still a rate limit.
var classifyRules = []struct {
	kind    ErrorType
	needles []string
}{
	{ErrorQuota, []string{"quota", "credit", "insufficient_quota"}},
	{ErrorRate, []string{"rate limit", "rate_limit", "429"}},
	{ErrorContext, []string{"context length", "too long"}},
	{ErrorTransient, []string{"timeout", "temporarily", "unavailable", "connection refused", " 50"}},
}

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, n := range rule.needles {
			if strings.Contains(msg, n) {
				return rule.kind
			}
		}
	}
	if errors.Is(err, ErrProviderUnconfigured) {
		return ErrorUnconfigured
	}
	return ErrorPermanent
}

// Failover reports whether another provider should be tried after err.
func Failover(t ErrorType) bool {
	switch t {
	case ErrorQuota, ErrorRate, ErrorTransient, ErrorUnconfigured:
		return true
	}
	return false
}
