package generation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/certprep/certprep-api/internal/models"
)

// RenderInsertStatements renders questions as SQL insert statements for the
// questions table, one statement per question, suitable for side files and
// backup dumps.
func RenderInsertStatements(questions []models.Question) (string, error) {
	var b strings.Builder
	b.WriteString("-- generated question inserts\n")

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return "", fmt.Errorf("failed to marshal options: %w", err)
		}
		explanation, err := json.Marshal(q.Explanation)
		if err != nil {
			return "", fmt.Errorf("failed to marshal explanation: %w", err)
		}

		weight := q.Weight
		if weight == 0 {
			weight = 1
		}

		fmt.Fprintf(&b,
			"INSERT INTO questions (question_text, options, correct_answers, explanation, certification, domain, subdomain, cognitive_level, skill_level, weight, refs) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %g, %s);\n",
			quoteSQL(q.QuestionText),
			quoteSQL(string(options)),
			intArrayLiteral(q.CorrectAnswers),
			quoteSQL(string(explanation)),
			quoteSQL(q.Certification),
			quoteSQL(q.Domain),
			quoteSQL(q.Subdomain),
			quoteSQL(q.CognitiveLevel),
			quoteSQL(q.SkillLevel),
			weight,
			textArrayLiteral(q.References),
		)
	}
	return b.String(), nil
}

// WriteSideFile writes the rendered inserts into exportDir, named by batch
// id and timestamp, and returns the file path.
func WriteSideFile(exportDir, batchID string, questions []models.Question) (string, error) {
	sql, err := RenderInsertStatements(questions)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.sql", batchID, time.Now().Format("20060102T150405"))
	path := filepath.Join(exportDir, name)
	if err := os.WriteFile(path, []byte(sql), 0o644); err != nil {
		return "", fmt.Errorf("failed to write side file: %w", err)
	}
	return path, nil
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func intArrayLiteral(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return fmt.Sprintf("'{%s}'", strings.Join(parts, ","))
}

func textArrayLiteral(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
	}
	return quoteSQL("{" + strings.Join(parts, ",") + "}")
}
