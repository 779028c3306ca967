package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultsMixedStream(t *testing.T) {
	stream := strings.Join([]string{
		`{"custom_id":"batch_1-q0","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"[{\"question_text\":\"q0\"}]"}]}}}`,
		`not json at all`,
		`{"custom_id":"batch_1-q1","result":{"type":"errored","error":{"message":"overloaded"}}}`,
		``,
		`{"custom_id":"batch_1-q2","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}}}`,
	}, "\n")

	results, err := ParseResults(strings.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Succeeded)
	assert.Equal(t, "batch_1-q0", results[0].CustomID)

	assert.False(t, results[1].Succeeded)
	assert.Contains(t, results[1].Err, "malformed result line")

	assert.False(t, results[2].Succeeded)
	assert.Equal(t, "batch_1-q1", results[2].CustomID)
	assert.Equal(t, "overloaded", results[2].Err)

	// Multiple text blocks concatenate in order.
	assert.True(t, results[3].Succeeded)
	assert.Equal(t, "part one part two", results[3].Text)
}

func TestParseResultsPreservesOrder(t *testing.T) {
	stream := `{"custom_id":"b-q2","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"2"}]}}}
{"custom_id":"b-q0","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"0"}]}}}
{"custom_id":"b-q1","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"1"}]}}}`

	results, err := ParseResults(strings.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, results, 3)
	// No reordering: results stay in the order encountered.
	assert.Equal(t, "b-q2", results[0].CustomID)
	assert.Equal(t, "b-q0", results[1].CustomID)
	assert.Equal(t, "b-q1", results[2].CustomID)
}

func TestParseResultsEmptyStream(t *testing.T) {
	results, err := ParseResults(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestParseResultsUnknownTypeIsFailure(t *testing.T) {
	stream := `{"custom_id":"b-q0","result":{"type":"expired"}}`
	results, err := ParseResults(strings.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded)
	assert.Contains(t, results[0].Err, "expired")
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `[{"a":1}]`, `[{"a":1}]`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence with surrounding whitespace", "  ```json\n[]\n```  ", "[]"},
		{"content on fence line", "```{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestParseQuestionsArray(t *testing.T) {
	payload := "```json\n" + `[
		{
			"question_text": "Which cloud deployment model dedicates infrastructure to one organization?",
			"options": [
				{"text": "Public", "is_correct": false},
				{"text": "Private", "is_correct": true},
				{"text": "Community", "is_correct": false},
				{"text": "Hybrid", "is_correct": false}
			],
			"correct_answers": [1],
			"explanation": {"summary": "Private clouds serve a single org.", "breakdown": ["dedicated tenancy"], "other_options": "The rest are shared."},
			"domain": "Cloud Architecture",
			"weight": 2
		}
	]` + "\n```"

	questions, err := ParseQuestions(payload)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	q := questions[0]
	assert.Equal(t, []int{1}, q.CorrectAnswers)
	assert.True(t, q.Options[1].IsCorrect)
	assert.Equal(t, "Cloud Architecture", q.Domain)
	assert.Equal(t, float64(2), q.Weight)
	assert.True(t, q.Valid())
}

func TestParseQuestionsSingularCorrectAnswer(t *testing.T) {
	// Legacy singular key folds into the canonical plural array.
	payload := `[{"question_text":"q","options":[{"text":"a"},{"text":"b"}],"correct_answer":1}]`

	questions, err := ParseQuestions(payload)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, []int{1}, questions[0].CorrectAnswers)
	assert.True(t, questions[0].Options[1].IsCorrect)
}

func TestParseQuestionsSingleObject(t *testing.T) {
	payload := `{"question_text":"q","options":[{"text":"a","is_correct":true}]}`

	questions, err := ParseQuestions(payload)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, []int{0}, questions[0].CorrectAnswers)
}

func TestParseQuestionsGarbage(t *testing.T) {
	_, err := ParseQuestions("this is not json")
	assert.Error(t, err)

	_, err = ParseQuestions("")
	assert.Error(t, err)

	_, err = ParseQuestions("```\n\n```")
	assert.Error(t, err)
}
