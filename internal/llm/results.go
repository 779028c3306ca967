package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/certprep/certprep-api/internal/models"
)

// BatchResult is one parsed line of the NDJSON result stream. Exactly one of
// Text or Err is meaningful depending on Succeeded.
type BatchResult struct {
	CustomID  string
	Succeeded bool
	Text      string
	Err       string
}

type resultLine struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string `json:"type"`
		Message struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
}

// ParseResults reads a newline-delimited result stream, one JSON record per
// line, in the order encountered. Malformed lines are skipped and reported
// as failed records rather than aborting the stream.
func ParseResults(r io.Reader) ([]BatchResult, error) {
	scanner := bufio.NewScanner(r)
	// Single results can carry long generations; the default 64K line
	// limit is too small.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var results []BatchResult
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed resultLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			results = append(results, BatchResult{
				Succeeded: false,
				Err:       fmt.Sprintf("malformed result line: %v", err),
			})
			continue
		}

		res := BatchResult{CustomID: parsed.CustomID}
		if parsed.Result.Type != "succeeded" {
			res.Err = parsed.Result.Error.Message
			if res.Err == "" {
				res.Err = fmt.Sprintf("remote result type %q", parsed.Result.Type)
			}
			results = append(results, res)
			continue
		}

		for _, block := range parsed.Result.Message.Content {
			if block.Type == "text" {
				res.Text += block.Text
			}
		}
		res.Succeeded = true
		results = append(results, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result stream: %w", err)
	}
	return results, nil
}

// StripCodeFence removes an optional surrounding markdown code fence
// (``` or ```json) from generated text.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag line (e.g. "json").
		first := strings.TrimSpace(trimmed[:newline])
		if first == "" || !strings.ContainsAny(first, " \t{[") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// rawQuestion accepts both the canonical plural correct_answers key and the
// legacy singular correct_answer, which is folded into the array.
type rawQuestion struct {
	models.Question
	CorrectAnswer *int `json:"correct_answer"`
}

// ParseQuestions decodes generated text into Question values. The payload
// may be a JSON array or a single object, optionally wrapped in a markdown
// code fence.
func ParseQuestions(text string) ([]models.Question, error) {
	payload := StripCodeFence(text)
	if payload == "" {
		return nil, fmt.Errorf("empty generation payload")
	}

	var raws []rawQuestion
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		var single rawQuestion
		if errSingle := json.Unmarshal([]byte(payload), &single); errSingle != nil {
			return nil, fmt.Errorf("payload is neither a question array nor a question object: %w", err)
		}
		raws = []rawQuestion{single}
	}

	questions := make([]models.Question, 0, len(raws))
	for _, raw := range raws {
		q := raw.Question
		if len(q.CorrectAnswers) == 0 && raw.CorrectAnswer != nil {
			q.CorrectAnswers = []int{*raw.CorrectAnswer}
		}
		q.NormalizeCorrectAnswers()
		questions = append(questions, q)
	}
	return questions, nil
}
