package models

import "fmt"

// PromptType names the purpose of a prompt template.
type PromptType string

const (
	PromptFeedbackEnhancement PromptType = "feedback-enhancement"
	PromptProjectGuidance     PromptType = "project-guidance"
	PromptSkillMatching       PromptType = "skill-matching"
	PromptGapAnalysis         PromptType = "gap-analysis"
	PromptProjectSummary      PromptType = "project-summary"
)

// PromptTypes is the closed set of prompt purposes.
var PromptTypes = []PromptType{
	PromptFeedbackEnhancement,
	PromptProjectGuidance,
	PromptSkillMatching,
	PromptGapAnalysis,
	PromptProjectSummary,
}

// ParsePromptType validates s against PromptTypes.
func ParsePromptType(s string) (PromptType, error) {
	pt := PromptType(s)
	if !pt.Valid() {
		return "", fmt.Errorf("unknown prompt type %q", s)
	}
	return pt, nil
}

// Valid reports whether the prompt type is part of the closed set.
func (p PromptType) Valid() bool {
	for _, pt := range PromptTypes {
		if p == pt {
			return true
		}
	}
	return false
}

// ResourceName is the template file name for this prompt type.
func (p PromptType) ResourceName() string {
	return string(p) + ".txt"
}
