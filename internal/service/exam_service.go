package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/repository"
)

var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrNotExamOwner   = errors.New("exam belongs to another teacher")
	ErrExamNotDraft   = errors.New("exam is not editable in its current status")
	ErrExamEmpty      = errors.New("exam has no questions")
	ErrInvalidRequest = errors.New("invalid request")
)

// examPayloadTTL bounds how long a published exam's student-facing payload
// lives in Redis before the next attempt refills it from Postgres.
const examPayloadTTL = 6 * time.Hour

// ExamService handles exam authoring and the student-facing exam payload.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	logger       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	logger zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		logger:       logger.With().Str("component", "exam_service").Logger(),
	}
}

// Create makes a new draft exam owned by the teacher.
func (s *ExamService) Create(ctx context.Context, teacherID int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		TeacherID:       teacherID,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Status:          model.ExamStatusDraft,
		Settings:        req.Settings,
	}
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	s.logger.Info().Str("examId", exam.ID.String()).Int("teacherId", teacherID).Msg("Exam created")
	return exam, nil
}

// Get retrieves one exam, enforcing teacher ownership.
func (s *ExamService) Get(ctx context.Context, teacherID int, examID uuid.UUID) (*model.Exam, error) {
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
	return exam, nil
}

// List retrieves a teacher's exams with pagination.
func (s *ExamService) List(ctx context.Context, teacherID, limit, offset int) ([]model.Exam, int, error) {
	return s.examRepo.ListByTeacher(ctx, teacherID, limit, offset)
}

// Update applies partial changes to a draft exam. Published exams are frozen:
// students may already hold a cached payload, so edits require unpublishing.
func (s *ExamService) Update(ctx context.Context, teacherID int, examID uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.Get(ctx, teacherID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.Settings != nil {
		exam.Settings = *req.Settings
	}
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	return exam, nil
}

// ReplaceQuestions swaps out a draft exam's full question set.
func (s *ExamService) ReplaceQuestions(ctx context.Context, teacherID int, examID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	exam, err := s.Get(ctx, teacherID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	questions := make([]model.Question, len(req.Questions))
	for i, in := range req.Questions {
		points := in.Points
		if points == 0 {
			points = 1
		}
		q := model.Question{
			ExamID:         examID,
			Type:           model.QuestionType(in.Type),
			Prompt:         in.Prompt,
			Options:        in.Options,
			CorrectChoice:  in.CorrectChoice,
			CorrectChoices: in.CorrectChoices,
			CorrectText:    in.CorrectText,
			Points:         points,
			Category:       in.Category,
			Position:       i,
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %s", ErrInvalidRequest, i+1, err)
		}
		questions[i] = q
	}

	if err := s.questionRepo.ReplaceForExam(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	return questions, nil
}

// Questions retrieves an exam's questions with answer keys, for the owner.
func (s *ExamService) Questions(ctx context.Context, teacherID int, examID uuid.UUID) ([]model.Question, error) {
	if _, err := s.Get(ctx, teacherID, examID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByExam(ctx, examID)
}

// Publish transitions a draft exam to PUBLISHED and warms the student-facing
// payload cache. An exam without questions cannot be published.
func (s *ExamService) Publish(ctx context.Context, teacherID int, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.Get(ctx, teacherID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrExamEmpty
	}

	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusPublished); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}
	exam.Status = model.ExamStatusPublished

	if err := s.cachePayload(ctx, exam, questions); err != nil {
		// Cache warm failure is not fatal; GetPayload refills from Postgres.
		s.logger.Warn().Err(err).Str("examId", examID.String()).Msg("Failed to warm exam payload cache")
	}

	s.logger.Info().Str("examId", examID.String()).Int("questions", len(questions)).Msg("Exam published")
	return exam, nil
}

// Archive transitions a published exam to ARCHIVED and drops its cached
// payload so no new attempt can start.
func (s *ExamService) Archive(ctx context.Context, teacherID int, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.Get(ctx, teacherID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotDraft
	}
	if err := s.examRepo.UpdateStatus(ctx, examID, model.ExamStatusArchived); err != nil {
		return nil, fmt.Errorf("archive exam: %w", err)
	}
	exam.Status = model.ExamStatusArchived
	s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(examID.String()))
	return exam, nil
}

// Delete removes an exam and, via schema cascade, its questions and results.
func (s *ExamService) Delete(ctx context.Context, teacherID int, examID uuid.UUID) error {
	if _, err := s.Get(ctx, teacherID, examID); err != nil {
		return err
	}
	if err := s.examRepo.Delete(ctx, examID); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(examID.String()))
	return nil
}

// GetForAttempt loads an exam and its full question set (answer keys included)
// for the attempt engine. Only published exams qualify.
func (s *ExamService) GetForAttempt(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.Question, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrExamNotFound
		}
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, nil, ErrExamNotFound
	}
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return exam, questions, nil
}

// GetPayload returns the student-facing exam payload, Redis first with a
// Postgres fallback that refills the cache.
func (s *ExamService) GetPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.ExamPayload
		if err := json.Unmarshal(raw, &payload); err == nil {
			return &payload, nil
		}
		s.logger.Warn().Str("examId", examID.String()).Msg("Corrupt cached exam payload, refilling")
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("Redis unavailable for exam payload, falling back to Postgres")
	}

	exam, questions, err := s.GetForAttempt(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.cachePayload(ctx, exam, questions); err != nil {
		s.logger.Warn().Err(err).Str("examId", examID.String()).Msg("Failed to refill exam payload cache")
	}
	return buildPayload(exam, questions), nil
}

// PrewarmPayloads loads every published exam's payload into Redis. Run before
// accepting traffic so a thundering herd at exam start never races the lazy
// refill.
func (s *ExamService) PrewarmPayloads(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	for i := range exams {
		exam := &exams[i]
		questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
		if err != nil {
			return fmt.Errorf("list questions for %s: %w", exam.ID, err)
		}
		if err := s.cachePayload(ctx, exam, questions); err != nil {
			return fmt.Errorf("cache payload for %s: %w", exam.ID, err)
		}
	}
	s.logger.Info().Int("exams", len(exams)).Msg("Exam payload cache prewarmed")
	return nil
}

// ListPublished retrieves the published exam catalog for the student lobby.
func (s *ExamService) ListPublished(ctx context.Context) ([]model.Exam, error) {
	return s.examRepo.ListPublished(ctx)
}

func (s *ExamService) cachePayload(ctx context.Context, exam *model.Exam, questions []model.Question) error {
	payload := buildPayload(exam, questions)
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode exam payload: %w", err)
	}
	key := config.CacheKey.ExamPayloadKey(exam.ID.String())
	return s.rdb.Set(ctx, key, raw, examPayloadTTL).Err()
}

// buildPayload strips answer keys from the question set.
func buildPayload(exam *model.Exam, questions []model.Question) *model.ExamPayload {
	stripped := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		stripped[i] = model.QuestionForStudent{
			ID:       q.ID,
			Type:     q.Type,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Points:   q.Points,
			Position: q.Position,
		}
	}
	return &model.ExamPayload{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		Questions:       stripped,
	}
}
