package prompts

import "github.com/esche888/appcollab-sub000/internal/models"

// defaultTemplates are served when the template file for a prompt type is
// missing or unreadable. Keep them in sync with the files under prompts/.
var defaultTemplates = map[models.PromptType]string{
	models.PromptFeedbackEnhancement: `You are helping a contributor give constructive feedback on a collaborative project.

Project: {projectTitle}
Original feedback:
{feedback}

Rewrite the feedback so it is specific, respectful and actionable. Keep the author's intent and keep it under 150 words.`,

	models.PromptProjectGuidance: `You are an experienced mentor for open collaboration projects.

Project: {projectTitle}
Description:
{projectDescription}

Current stage: {stage}

Suggest the three most useful next steps for the project owner, each with one sentence explaining the expected outcome.`,

	models.PromptSkillMatching: `You match volunteers to projects.

Project needs:
{requiredSkills}

Candidate skills:
{userSkills}

Rate the fit from 0 to 100 and list the matching and missing skills. Respond as plain text with the score on the first line.`,

	models.PromptGapAnalysis: `You review collaborative projects for missing capabilities.

Project: {projectTitle}
Description:
{projectDescription}

Team skills:
{teamSkills}

Identify the most important gaps in skills, resources or roles that block progress and order them by impact.`,

	models.PromptProjectSummary: `Summarize the following project for a public listing.

Title: {projectTitle}
Description:
{projectDescription}

Write two short paragraphs: what the project does and who should join.`,
}

// DefaultTemplate returns the built-in text for pt.
func DefaultTemplate(pt models.PromptType) (string, bool) {
	text, ok := defaultTemplates[pt]
	return text, ok
}
