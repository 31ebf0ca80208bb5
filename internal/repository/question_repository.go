package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examroom/examroom-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for a given exam in canonical order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_type, prompt, options, correct_choice, correct_choices, correct_text, points, category, position
		 FROM questions WHERE exam_id = $1
		 ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options, choices []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Type, &q.Prompt, &options, &q.CorrectChoice, &choices, &q.CorrectText, &q.Points, &q.Category, &q.Position); err != nil {
			return nil, err
		}
		if options != nil {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode question options: %w", err)
			}
		}
		if choices != nil {
			if err := json.Unmarshal(choices, &q.CorrectChoices); err != nil {
				return nil, fmt.Errorf("decode correct choices: %w", err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceForExam atomically replaces an exam's full question set.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		var options, choices []byte
		if q.Options != nil {
			if options, err = json.Marshal(q.Options); err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
		}
		if q.CorrectChoices != nil {
			if choices, err = json.Marshal(q.CorrectChoices); err != nil {
				return fmt.Errorf("encode correct choices: %w", err)
			}
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, question_type, prompt, options, correct_choice, correct_choices, correct_text, points, category, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id`,
			examID, q.Type, q.Prompt, options, q.CorrectChoice, choices, q.CorrectText, q.Points, q.Category, q.Position,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return tx.Commit(ctx)
}
