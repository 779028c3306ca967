package models

import "strings"

// Certification tracks supported by the platform.
const (
	CertificationCloudPlus    = "CV0-004"
	CertificationSecurityPlus = "SY0-701"
)

var certificationDomains = map[string][]string{
	CertificationCloudPlus: {
		"Cloud Architecture",
		"Deployment",
		"Operations",
		"Security",
		"DevOps Fundamentals",
		"Troubleshooting",
	},
	CertificationSecurityPlus: {
		"General Security Concepts",
		"Threats, Vulnerabilities, and Mitigations",
		"Security Architecture",
		"Security Operations",
		"Security Program Management and Oversight",
	},
}

// IsValidCertification reports whether the certification type is one of the
// supported tracks.
func IsValidCertification(certType string) bool {
	_, ok := certificationDomains[certType]
	return ok
}

// DomainsForCertification returns the domain taxonomy for a track, or nil
// for an unknown track.
func DomainsForCertification(certType string) []string {
	return certificationDomains[certType]
}

type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Explanation struct {
	Summary      string   `json:"summary"`
	Breakdown    []string `json:"breakdown"`
	OtherOptions string   `json:"other_options"`
}

// Question is one generated or stored multiple-choice item. Instances are
// immutable once parsed; malformed generation output is discarded, never
// patched up.
type Question struct {
	ID             int64       `json:"id,omitempty"`
	QuestionText   string      `json:"question_text"`
	Options        []Option    `json:"options"`
	CorrectAnswers []int       `json:"correct_answers"`
	Explanation    Explanation `json:"explanation"`
	Certification  string      `json:"certification,omitempty"`
	Domain         string      `json:"domain"`
	Subdomain      string      `json:"subdomain,omitempty"`
	CognitiveLevel string      `json:"cognitive_level,omitempty"`
	SkillLevel     string      `json:"skill_level,omitempty"`
	Weight         float64     `json:"weight,omitempty"`
	References     []string    `json:"references,omitempty"`
}

// Valid reports whether a parsed question is usable: non-empty text and at
// least one option flagged correct (either via the flag or the index list).
func (q Question) Valid() bool {
	if strings.TrimSpace(q.QuestionText) == "" || len(q.Options) == 0 {
		return false
	}
	if len(q.CorrectAnswers) > 0 {
		for _, idx := range q.CorrectAnswers {
			if idx < 0 || idx >= len(q.Options) {
				return false
			}
		}
		return true
	}
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return true
		}
	}
	return false
}

// NormalizeCorrectAnswers reconciles the correctness flags with the index
// list. The plural array is canonical: when it is empty it is derived from
// the flags, and when it is populated the flags are rewritten to match.
func (q *Question) NormalizeCorrectAnswers() {
	if len(q.CorrectAnswers) == 0 {
		for i, opt := range q.Options {
			if opt.IsCorrect {
				q.CorrectAnswers = append(q.CorrectAnswers, i)
			}
		}
		return
	}
	for i := range q.Options {
		q.Options[i].IsCorrect = false
	}
	for _, idx := range q.CorrectAnswers {
		if idx >= 0 && idx < len(q.Options) {
			q.Options[idx].IsCorrect = true
		}
	}
}
