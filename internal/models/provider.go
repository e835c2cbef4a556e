package models

import (
	"fmt"
	"strings"
)

// ModelID identifies one of the supported LLM vendors.
type ModelID string

const (
	ModelClaude ModelID = "claude"
	ModelOpenAI ModelID = "openai"
	ModelGemini ModelID = "gemini"
)

// SupportedModels lists every vendor the gateway knows how to talk to.
var SupportedModels = []ModelID{ModelClaude, ModelOpenAI, ModelGemini}

// DefaultFallbackOrder is the priority used when no active model is set
// or the configured one is unavailable.
var DefaultFallbackOrder = []ModelID{ModelClaude, ModelOpenAI, ModelGemini}

// ParseModelID normalizes s and checks it against SupportedModels.
func ParseModelID(s string) (ModelID, error) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("unsupported model %q", s)
	}
	return id, nil
}

// Valid reports whether the identifier is one of SupportedModels.
func (m ModelID) Valid() bool {
	for _, id := range SupportedModels {
		if m == id {
			return true
		}
	}
	return false
}

func (m ModelID) String() string {
	return string(m)
}

// DisplayName returns a human readable vendor name for admin views.
func (m ModelID) DisplayName() string {
	switch m {
	case ModelClaude:
		return "Anthropic Claude"
	case ModelOpenAI:
		return "OpenAI GPT"
	case ModelGemini:
		return "Google Gemini"
	default:
		return string(m)
	}
}
