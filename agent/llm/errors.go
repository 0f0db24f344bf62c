package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	goopenai "github.com/meguminnnnnnnnn/go-openai"
	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

// StatusOverloaded is the non-standard status some providers use for
// capacity errors.
const StatusOverloaded = 529

var transientStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	StatusOverloaded:               true,
}

var transientMarkers = []string{
	"overloaded",
	"rate limit",
	"try again later",
	"status code: 429",
	"status code: 500",
	"status code: 502",
	"status code: 503",
	"status code: 504",
	"status code: 529",
}

// IsTransient reports whether err is a model failure worth retrying:
// provider overload, throttling, 5xx, or a timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, contractx.ErrUpstreamOverloaded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sdkErr *openaisdk.Error
	if errors.As(err, &sdkErr) && transientStatus[sdkErr.StatusCode] {
		return true
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && transientStatus[apiErr.HTTPStatusCode] {
		return true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && transientStatus[reqErr.HTTPStatusCode] {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify maps a model call error onto the turn error taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contractx.ErrUpstreamOverloaded) || errors.Is(err, contractx.ErrUpstreamFailure) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", contractx.ErrUpstreamOverloaded, err)
	}
	return fmt.Errorf("%w: %w", contractx.ErrUpstreamFailure, err)
}
