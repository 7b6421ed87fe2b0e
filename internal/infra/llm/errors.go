package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ossfeed/coordinator/internal/domain/entity"
)

// StatusError wraps a provider error with the HTTP status code the backend
// returned, when one is available, so Classify can tell a transient 503
// apart from a fatal 400.
type StatusError struct {
	StatusCode int
	Provider   string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Classify maps a provider error onto the coordinator's seven error kinds:
// 429 and 5xx are transient and safe to retry, 4xx other than
// 429 are fatal (bad request, auth, not-found-model), and everything else
// falls back on generic network-error detection.
func Classify(err error) entity.Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return entity.KindProviderTransient
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return entity.KindRateLimited
		case statusErr.StatusCode >= 500:
			return entity.KindProviderTransient
		case statusErr.StatusCode >= 400:
			return entity.KindProviderFatal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return entity.KindProviderTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return entity.KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "503") || strings.Contains(msg, "502"):
		return entity.KindProviderTransient
	}
	return entity.KindProviderFatal
}
