package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/repository"
	"github.com/examroom/examroom-backend/internal/scoring"
)

var (
	ErrAnswerNotInResult = errors.New("graded answer does not belong to this result")
	ErrNotGradable       = errors.New("question type is not manually gradable")
	ErrPointsOutOfRange  = errors.New("earned points outside the question's range")
)

// GradingService applies manual grades to essay and short-answer items and
// recomputes the result's aggregates.
type GradingService struct {
	resultRepo *repository.ResultRepository
	examRepo   *repository.ExamRepository
	logger     zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	resultRepo *repository.ResultRepository,
	examRepo *repository.ExamRepository,
	logger zerolog.Logger,
) *GradingService {
	return &GradingService{
		resultRepo: resultRepo,
		examRepo:   examRepo,
		logger:     logger.With().Str("component", "grading_service").Logger(),
	}
}

// manuallyGradable reports whether a question type accepts grade overrides.
func manuallyGradable(t model.QuestionType) bool {
	return t == model.QuestionEssay || t == model.QuestionShortAnswer || t == model.QuestionFillBlank
}

// ExamResults retrieves all results for one of the teacher's exams.
func (s *GradingService) ExamResults(ctx context.Context, teacherID int, examID uuid.UUID, limit, offset int) ([]model.Result, int, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrExamNotFound
		}
		return nil, 0, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, 0, ErrNotExamOwner
	}
	return s.resultRepo.ListByExam(ctx, examID, limit, offset)
}

// ExamStats aggregates one of the teacher's exams: attempt count, score and
// percentage averages, pass rate, best/worst percentage, and how many results
// still await a manual grading pass.
func (s *GradingService) ExamStats(ctx context.Context, teacherID int, examID uuid.UUID) (*model.ExamStats, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamOwner
	}

	stats, err := s.resultRepo.StatsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	return stats, nil
}

// Grade overrides earned points and feedback on a result's manually gradable
// answers, then recomputes score, percentage, and the pass flag so the result
// invariant (percentage vs passing threshold) holds after grading.
func (s *GradingService) Grade(ctx context.Context, teacherID int, resultID uuid.UUID, req *model.GradeResultRequest) (*model.Result, error) {
	res, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, res.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamOwner
	}

	if err := applyGrades(res, exam.Settings, req.Answers, time.Now()); err != nil {
		return nil, err
	}

	if err := s.resultRepo.UpdateGrading(ctx, res); err != nil {
		return nil, fmt.Errorf("persist grading: %w", err)
	}

	s.logger.Info().
		Str("resultId", resultID.String()).
		Int("teacherId", teacherID).
		Float64("score", res.Score).
		Bool("passed", res.Passed).
		Msg("Result manually graded")
	return res, nil
}

// applyGrades validates and applies per-answer overrides in place, then
// recomputes score, percentage, and the pass flag. It stamps the result as
// manually graded at now; the same timestamp reaches the row and the caller.
func applyGrades(res *model.Result, settings model.ExamSettings, inputs []model.GradeAnswerInput, now time.Time) error {
	byQuestion := make(map[uuid.UUID]*model.AnswerRecord, len(res.Answers))
	for i := range res.Answers {
		byQuestion[res.Answers[i].QuestionID] = &res.Answers[i]
	}

	for _, in := range inputs {
		rec, ok := byQuestion[in.QuestionID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAnswerNotInResult, in.QuestionID)
		}
		if !manuallyGradable(rec.Type) {
			return fmt.Errorf("%w: %s is %s", ErrNotGradable, in.QuestionID, rec.Type)
		}
		if in.EarnedPoints < 0 || in.EarnedPoints > rec.Points {
			return fmt.Errorf("%w: %s accepts 0 to %g", ErrPointsOutOfRange, in.QuestionID, rec.Points)
		}
		rec.EarnedPoints = in.EarnedPoints
		rec.IsCorrect = in.EarnedPoints > 0
		rec.Feedback = in.Feedback
		rec.Graded = true
	}

	var score float64
	for i := range res.Answers {
		score += res.Answers[i].EarnedPoints
	}
	res.Score = score
	res.Percentage = scoring.Percentage(score, res.TotalPoints)
	res.Passed = scoring.Passed(res.Percentage, settings.PassingScore)
	res.ManuallyGraded = true
	res.GradedAt = &now
	return nil
}
