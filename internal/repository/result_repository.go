package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examroom/examroom-backend/internal/model"
)

// ResultRepository handles result data access. The store is append-only from
// the attempt path; only manual grading updates a row in place.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row interface{ Scan(...any) error }) (*model.Result, error) {
	res := &model.Result{}
	var answers []byte
	if err := row.Scan(
		&res.ID, &res.ExamID, &res.StudentID, &answers,
		&res.Score, &res.TotalPoints, &res.Percentage, &res.Passed,
		&res.StartedAt, &res.CompletedAt, &res.TimeSpentSeconds,
		&res.TabSwitches, &res.ManuallyGraded, &res.GradedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &res.Answers); err != nil {
		return nil, fmt.Errorf("decode result answers: %w", err)
	}
	return res, nil
}

const resultColumns = `id, exam_id, student_id, answers, score, total_points, percentage, passed,
	started_at, completed_at, time_spent_seconds, tab_switches, manually_graded, graded_at`

// Insert appends a result. The ID is derived deterministically from the
// attempt, so a retried submission hits ON CONFLICT and inserts nothing;
// submission stays at-most-once.
func (r *ResultRepository) Insert(ctx context.Context, res *model.Result) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return fmt.Errorf("encode result answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO results (id, exam_id, student_id, answers, score, total_points, percentage, passed,
		                      started_at, completed_at, time_spent_seconds, tab_switches)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		res.ID, res.ExamID, res.StudentID, answers, res.Score, res.TotalPoints,
		res.Percentage, res.Passed, res.StartedAt, res.CompletedAt,
		res.TimeSpentSeconds, res.TabSwitches)
	return err
}

// GetByID retrieves one result.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
	return scanResult(row)
}

// ListByStudent retrieves all results for a student, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE student_id = $1
		 ORDER BY completed_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// ListByExamAndStudent retrieves a student's results for one exam. Used by
// the retake-policy precondition check.
func (r *ResultRepository) ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY completed_at DESC`, examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// ListByExam retrieves all results for one exam with pagination.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.Result, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *res)
	}
	return results, total, rows.Err()
}

// UpdateGrading persists a manual grading pass: the overridden answer
// records plus the recomputed aggregates.
func (r *ResultRepository) UpdateGrading(ctx context.Context, res *model.Result) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return fmt.Errorf("encode result answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE results
		 SET answers = $1, score = $2, percentage = $3, passed = $4,
		     manually_graded = TRUE, graded_at = $5
		 WHERE id = $6`,
		answers, res.Score, res.Percentage, res.Passed, res.GradedAt, res.ID)
	return err
}

// StatsByExam aggregates one exam's results in a single round trip. An exam
// with no results yields zeroes across the board.
func (r *ResultRepository) StatsByExam(ctx context.Context, examID uuid.UUID) (*model.ExamStats, error) {
	stats := &model.ExamStats{ExamID: examID}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(score), 0),
		        COALESCE(AVG(percentage), 0),
		        COALESCE(100.0 * COUNT(*) FILTER (WHERE passed) / NULLIF(COUNT(*), 0), 0),
		        COALESCE(MAX(percentage), 0),
		        COALESCE(MIN(percentage), 0),
		        COALESCE(AVG(time_spent_seconds), 0),
		        COUNT(*) FILTER (WHERE NOT manually_graded)
		 FROM results WHERE exam_id = $1`, examID,
	).Scan(
		&stats.Attempts, &stats.AvgScore, &stats.AvgPercentage, &stats.PassRate,
		&stats.BestPercentage, &stats.WorstPercentage, &stats.AvgTimeSpentSeconds,
		&stats.Ungraded,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
