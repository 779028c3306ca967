package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/certprep/certprep-api/internal/models"
)

const outputSchema = `Respond with ONLY a JSON array containing exactly one question object, no prose.
Each question object must have exactly these keys:
  "question_text": string,
  "options": array of 4-6 objects {"text": string, "is_correct": boolean},
  "correct_answers": array of zero-based option indices,
  "explanation": {"summary": string, "breakdown": array of strings, "other_options": string},
  "domain": string,
  "subdomain": string,
  "cognitive_level": string,
  "skill_level": string,
  "weight": number,
  "references": array of strings`

// BuildQuestionPrompt constructs the generation instruction for a single
// question. Deterministic for identical params except for the embedded
// current-year reference.
func BuildQuestionPrompt(params models.RequestParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert item writer for the %s certification exam.\n", params.CertificationType)
	fmt.Fprintf(&b, "Write one original multiple-choice question aligned with the %d exam objectives.\n", time.Now().Year())

	if params.DomainName != "" {
		fmt.Fprintf(&b, "The question must cover the %q domain.\n", params.DomainName)
	} else if domains := models.DomainsForCertification(params.CertificationType); len(domains) > 0 {
		fmt.Fprintf(&b, "Choose a domain from: %s.\n", strings.Join(domains, "; "))
	}
	if params.CognitiveLevel != "" {
		fmt.Fprintf(&b, "Target cognitive level: %s.\n", params.CognitiveLevel)
	}
	if params.SkillLevel != "" {
		fmt.Fprintf(&b, "Target skill level: %s.\n", params.SkillLevel)
	}
	if params.ScenarioContext != "" {
		fmt.Fprintf(&b, "Frame the question inside this scenario: %s\n", params.ScenarioContext)
	}

	b.WriteString("\n")
	b.WriteString(outputSchema)
	return b.String()
}
