package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examroom/examroom-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	var settings []byte
	if err := row.Scan(
		&e.ID, &e.TeacherID, &e.Title, &e.Description, &e.DurationMinutes,
		&e.Status, &settings, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &e.Settings); err != nil {
		return nil, fmt.Errorf("decode exam settings: %w", err)
	}
	return e, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	settings, err := json.Marshal(e.Settings)
	if err != nil {
		return fmt.Errorf("encode exam settings: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (teacher_id, title, description, duration_minutes, status, settings)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.TeacherID, e.Title, e.Description, e.DurationMinutes, e.Status, settings,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, teacher_id, title, description, duration_minutes, status, settings, created_at, updated_at
		 FROM exams WHERE id = $1`, id)
	return scanExam(row)
}

// Update persists mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	settings, err := json.Marshal(e.Settings)
	if err != nil {
		return fmt.Errorf("encode exam settings: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, duration_minutes = $3, settings = $4, updated_at = NOW()
		 WHERE id = $5`,
		e.Title, e.Description, e.DurationMinutes, settings, e.ID)
	return err
}

// UpdateStatus transitions an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes an exam. Questions and results cascade at the schema level,
// so a deleted exam takes its results with it.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// ListByTeacher retrieves a teacher's exams with pagination.
func (r *ExamRepository) ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE teacher_id = $1`, teacherID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, teacher_id, title, description, duration_minutes, status, settings, created_at, updated_at
		 FROM exams
		 WHERE teacher_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, teacherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// ListPublished retrieves all published exams, newest first.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, teacher_id, title, description, duration_minutes, status, settings, created_at, updated_at
		 FROM exams
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
