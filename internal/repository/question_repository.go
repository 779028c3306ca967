package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/certprep/certprep-api/internal/models"
	"github.com/lib/pq"
)

// QuestionFilter narrows question listings. Zero values mean no filter.
type QuestionFilter struct {
	Certification string
	Domain        string
	Limit         int
	Offset        int
}

type QuestionRepository interface {
	Create(q models.Question) (models.Question, error)
	CreateMany(qs []models.Question) (int, error)
	Get(id int64) (models.Question, error)
	List(filter QuestionFilter) ([]models.Question, error)
	Update(id int64, q models.Question) (models.Question, error)
	Delete(id int64) error
	ListAll() ([]models.Question, error)
}

type questionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) QuestionRepository {
	return &questionRepository{db: db}
}

const questionColumns = `
	id, question_text, options, correct_answers, explanation, certification,
	domain, subdomain, cognitive_level, skill_level, weight, refs`

func (r *questionRepository) Create(q models.Question) (models.Question, error) {
	options, explanation, err := marshalQuestionBlobs(q)
	if err != nil {
		return q, err
	}

	query := `
		INSERT INTO questions (question_text, options, correct_answers, explanation, certification, domain, subdomain, cognitive_level, skill_level, weight, refs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = r.db.QueryRow(query,
		q.QuestionText,
		options,
		pq.Array(q.CorrectAnswers),
		explanation,
		q.Certification,
		q.Domain,
		q.Subdomain,
		q.CognitiveLevel,
		q.SkillLevel,
		q.Weight,
		pq.Array(q.References),
	).Scan(&q.ID)
	if err != nil {
		return q, err
	}
	return q, nil
}

// CreateMany inserts a parsed batch, skipping nothing: callers filter
// invalid questions before persisting. Returns the number inserted.
func (r *questionRepository) CreateMany(qs []models.Question) (int, error) {
	inserted := 0
	for _, q := range qs {
		if _, err := r.Create(q); err != nil {
			return inserted, fmt.Errorf("failed to insert question %q: %w", q.QuestionText, err)
		}
		inserted++
	}
	return inserted, nil
}

func (r *questionRepository) Get(id int64) (models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return q, ErrNotFound
		}
		return q, err
	}
	return q, nil
}

func (r *questionRepository) List(filter QuestionFilter) ([]models.Question, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if filter.Certification != "" {
		query += fmt.Sprintf(" AND certification = $%d", idx)
		args = append(args, filter.Certification)
		idx++
	}
	if filter.Domain != "" {
		query += fmt.Sprintf(" AND domain = $%d", idx)
		args = append(args, filter.Domain)
		idx++
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	return r.queryQuestions(query, args...)
}

func (r *questionRepository) ListAll() ([]models.Question, error) {
	return r.queryQuestions(`SELECT ` + questionColumns + ` FROM questions ORDER BY id`)
}

func (r *questionRepository) Update(id int64, q models.Question) (models.Question, error) {
	options, explanation, err := marshalQuestionBlobs(q)
	if err != nil {
		return q, err
	}

	query := `
		UPDATE questions
		SET question_text = $1, options = $2, correct_answers = $3, explanation = $4,
		    certification = $5, domain = $6, subdomain = $7, cognitive_level = $8,
		    skill_level = $9, weight = $10, refs = $11, updated_at = now()
		WHERE id = $12
	`
	res, err := r.db.Exec(query,
		q.QuestionText,
		options,
		pq.Array(q.CorrectAnswers),
		explanation,
		q.Certification,
		q.Domain,
		q.Subdomain,
		q.CognitiveLevel,
		q.SkillLevel,
		q.Weight,
		pq.Array(q.References),
		id,
	)
	if err != nil {
		return q, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return q, err
	}
	if rows == 0 {
		return q, ErrNotFound
	}
	q.ID = id
	return q, nil
}

func (r *questionRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *questionRepository) queryQuestions(query string, args ...interface{}) ([]models.Question, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func marshalQuestionBlobs(q models.Question) ([]byte, []byte, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	explanation, err := json.Marshal(q.Explanation)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal explanation: %w", err)
	}
	return options, explanation, nil
}

func scanQuestion(row rowScanner) (models.Question, error) {
	var (
		q           models.Question
		options     []byte
		explanation []byte
		answers     pq.Int64Array
		refs        pq.StringArray
	)
	err := row.Scan(
		&q.ID,
		&q.QuestionText,
		&options,
		&answers,
		&explanation,
		&q.Certification,
		&q.Domain,
		&q.Subdomain,
		&q.CognitiveLevel,
		&q.SkillLevel,
		&q.Weight,
		&refs,
	)
	if err != nil {
		return q, err
	}

	if err := json.Unmarshal(options, &q.Options); err != nil {
		return q, fmt.Errorf("failed to unmarshal options for question %d: %w", q.ID, err)
	}
	if len(explanation) > 0 {
		if err := json.Unmarshal(explanation, &q.Explanation); err != nil {
			return q, fmt.Errorf("failed to unmarshal explanation for question %d: %w", q.ID, err)
		}
	}
	for _, a := range answers {
		q.CorrectAnswers = append(q.CorrectAnswers, int(a))
	}
	q.References = refs
	return q, nil
}
