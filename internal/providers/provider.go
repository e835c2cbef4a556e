package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/esche888/appcollab-sub000/internal/models"
)

// CompletionOptions tunes a single completion call. Zero values defer to
// the provider defaults.
type CompletionOptions struct {
	MaxTokens    int
	Temperature  *float64
	SystemPrompt string
}

// CompletionResult is the normalized outcome of a vendor call.
type CompletionResult struct {
	Content string `json:"content"`
	// TokensUsed is input plus output tokens as reported by the vendor.
	TokensUsed int `json:"tokens_used"`
	// TokensEstimated is set when the vendor reported no usage and
	// TokensUsed was approximated from the response length.
	TokensEstimated bool           `json:"tokens_estimated"`
	ModelIdentifier models.ModelID `json:"model_identifier"`
	VendorModel     string         `json:"vendor_model"`
	ResponseTimeMS  int            `json:"response_time_ms"`
}

// Provider is implemented by each concrete LLM vendor adapter (Anthropic, OpenAI, Gemini).
type Provider interface {
	// ID returns the model identifier this adapter serves
	ID() models.ModelID

	// IsAvailable reports whether the credential is configured and the
	// vendor client could be constructed. It never touches the network.
	IsAvailable() bool

	// GenerateCompletion sends the prompt to the vendor. Any vendor-side
	// failure is returned as a *ProviderError.
	GenerateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (*CompletionResult, error)
}

// ErrorKind classifies vendor failures
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindAuth          ErrorKind = "auth"
	KindRateLimit     ErrorKind = "rate_limit"
	KindEmptyResponse ErrorKind = "empty_response"
	KindUpstream      ErrorKind = "upstream"
	KindUnavailable   ErrorKind = "unavailable"
)

// ProviderError wraps a failure reported by (or on the way to) a vendor.
type ProviderError struct {
	Provider   models.ModelID
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit:
		return true
	case KindUpstream:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// AsProviderError extracts a *ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// classify turns a transport error and an optional HTTP status into a ProviderError.
func classify(id models.ModelID, status int, err error) *ProviderError {
	pe := &ProviderError{Provider: id, StatusCode: status, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		pe.Kind = KindTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		pe.Kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Kind = KindTimeout
	default:
		pe.Kind = KindUpstream
	}
	return pe
}

func unavailable(id models.ModelID) *ProviderError {
	return &ProviderError{
		Provider: id,
		Kind:     KindUnavailable,
		Err:      fmt.Errorf("%s is not configured", id.DisplayName()),
	}
}

func emptyResponse(id models.ModelID) *ProviderError {
	return &ProviderError{
		Provider: id,
		Kind:     KindEmptyResponse,
		Err:      errors.New("vendor returned no content"),
	}
}

// EstimateTokens approximates a token count as one token per four
// characters, rounded up. Only used when the vendor reports no usage.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// normalizeUsage sums reported input and output tokens, falling back to a
// reported total and finally to an estimate from the content.
func normalizeUsage(input, output, total int64, content string) (int, bool) {
	if input+output > 0 {
		return int(input + output), false
	}
	if total > 0 {
		return int(total), false
	}
	return EstimateTokens(content), true
}
