package completion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/providers"
)

// ConfigurationError means no AI provider can serve requests at all.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// errNoProvider is the ConfigurationError returned when none of the
// registered providers is available
func errNoProvider(registered []models.ModelID) error {
	if len(registered) == 0 {
		return &ConfigurationError{Message: "no AI provider configured: no providers are registered"}
	}
	names := make([]string, len(registered))
	for i, id := range registered {
		names[i] = string(id)
	}
	return &ConfigurationError{
		Message: "no AI provider configured: set the API key for one of " + strings.Join(names, ", "),
	}
}

// ValidationError rejects a request before any state change or vendor call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorKind lets callers tell "AI is not configured" apart from "the AI
// request failed, retry".
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindProvider      ErrorKind = "provider"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindConfiguration
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}
	if _, ok := providers.AsProviderError(err); ok {
		return KindProvider
	}
	return KindInternal
}
