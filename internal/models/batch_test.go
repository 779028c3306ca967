package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoerceOwnerID(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want *int64
	}{
		{"float64 claim", float64(42), ptr(int64(42))},
		{"int", 7, ptr(int64(7))},
		{"numeric string", "13", ptr(int64(13))},
		{"json number", json.Number("99"), ptr(int64(99))},
		{"zero", float64(0), nil},
		{"negative", float64(-5), nil},
		{"garbage string", "abc", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceOwnerID(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestBatchStatusTerminal(t *testing.T) {
	assert.True(t, BatchStatusCompleted.Terminal())
	assert.True(t, BatchStatusExpired.Terminal())
	assert.True(t, BatchStatusCancelled.Terminal())
	assert.True(t, BatchStatusError.Terminal())
	assert.False(t, BatchStatusPending.Terminal())
	assert.False(t, BatchStatusValidating.Terminal())
	assert.False(t, BatchStatusInProgress.Terminal())
}

func TestExpiredByAge(t *testing.T) {
	now := time.Now()
	job := BatchJob{Status: BatchStatusPending, CreatedAt: now.Add(-25 * time.Hour)}
	assert.True(t, job.ExpiredByAge(now, 24*time.Hour))

	fresh := BatchJob{Status: BatchStatusInProgress, CreatedAt: now.Add(-time.Hour)}
	assert.False(t, fresh.ExpiredByAge(now, 24*time.Hour))

	// Terminal states never flip to expired, however old.
	done := BatchJob{Status: BatchStatusCompleted, CreatedAt: now.Add(-48 * time.Hour)}
	assert.False(t, done.ExpiredByAge(now, 24*time.Hour))
}

func TestQuestionValid(t *testing.T) {
	q := Question{
		QuestionText: "Which storage tier suits infrequent access?",
		Options: []Option{
			{Text: "Hot", IsCorrect: false},
			{Text: "Cool", IsCorrect: true},
		},
	}
	assert.True(t, q.Valid())

	assert.False(t, Question{QuestionText: "   ", Options: q.Options}.Valid())
	assert.False(t, Question{QuestionText: "text"}.Valid())

	noCorrect := Question{QuestionText: "text", Options: []Option{{Text: "a"}, {Text: "b"}}}
	assert.False(t, noCorrect.Valid())

	outOfRange := Question{QuestionText: "text", Options: []Option{{Text: "a"}}, CorrectAnswers: []int{3}}
	assert.False(t, outOfRange.Valid())
}

func TestNormalizeCorrectAnswers(t *testing.T) {
	q := Question{
		QuestionText: "q",
		Options: []Option{
			{Text: "a", IsCorrect: true},
			{Text: "b"},
			{Text: "c", IsCorrect: true},
		},
	}
	q.NormalizeCorrectAnswers()
	assert.Equal(t, []int{0, 2}, q.CorrectAnswers)

	// The array is canonical: flags get rewritten to match it.
	q2 := Question{
		QuestionText:   "q",
		Options:        []Option{{Text: "a", IsCorrect: true}, {Text: "b"}},
		CorrectAnswers: []int{1},
	}
	q2.NormalizeCorrectAnswers()
	assert.False(t, q2.Options[0].IsCorrect)
	assert.True(t, q2.Options[1].IsCorrect)
}

func TestCertificationTaxonomy(t *testing.T) {
	assert.True(t, IsValidCertification(CertificationCloudPlus))
	assert.True(t, IsValidCertification(CertificationSecurityPlus))
	assert.False(t, IsValidCertification("XK0-005"))

	assert.NotEmpty(t, DomainsForCertification(CertificationCloudPlus))
	assert.Nil(t, DomainsForCertification("bogus"))
}

func ptr[T any](v T) *T { return &v }
