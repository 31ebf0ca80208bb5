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
	"github.com/examroom/examroom-backend/internal/session"
)

// resultStore is the slice of the result repository the attempt flow needs.
// Insert doubles as the in-band fallback when the persistence queue is down.
type resultStore interface {
	Insert(ctx context.Context, res *model.Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.Result, error)
	ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Result, error)
}

var (
	ErrResultNotFound   = errors.New("result not found")
	ErrNotResultOwner   = errors.New("result belongs to another student")
	ErrResultsDeferred  = errors.New("results are not visible yet")
	ErrAttemptNotActive = errors.New("no active attempt for this exam")
)

// attemptGracePeriod pads the attempt-state TTL past the exam duration so a
// student reconnecting right at the deadline still resumes into a closed
// attempt instead of a fresh one.
const attemptGracePeriod = 5 * time.Minute

// answersTTL bounds the autosave hash. It outlives any attempt by a wide
// margin; the normal path deletes the hash at submission.
const answersTTL = 24 * time.Hour

// LobbyEntry is one published exam as seen from the student lobby, with the
// student's own attempt status overlaid.
type LobbyEntry struct {
	Exam     model.Exam `json:"exam"`
	Status   string     `json:"status"`
	Attempts int        `json:"attempts"`
}

// Lobby statuses.
const (
	LobbyAvailable  = "available"
	LobbyNotYetOpen = "not_yet_available"
	LobbyExpired    = "expired"
	LobbyInProgress = "in_progress"
	LobbyCompleted  = "completed"
)

// AttemptService orchestrates exam attempts: it builds session engines,
// mirrors attempt state into Redis for reconnects, and hands completed
// results to the persistence queue.
type AttemptService struct {
	examService *ExamService
	resultRepo  resultStore
	rdb         *redis.Client
	cfg         *config.Config
	logger      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	examService *ExamService,
	resultRepo resultStore,
	rdb *redis.Client,
	cfg *config.Config,
	logger zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		examService: examService,
		resultRepo:  resultRepo,
		rdb:         rdb,
		cfg:         cfg,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
	}
}

// Lobby returns the published exam catalog with the student's attempt status
// overlaid on each entry.
func (s *AttemptService) Lobby(ctx context.Context, studentID int) ([]LobbyEntry, error) {
	exams, err := s.examService.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}

	now := time.Now()
	entries := make([]LobbyEntry, 0, len(exams))
	for _, exam := range exams {
		prior, err := s.resultRepo.ListByExamAndStudent(ctx, exam.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("list prior results: %w", err)
		}

		entry := LobbyEntry{Exam: exam, Attempts: len(prior), Status: LobbyAvailable}
		set := exam.Settings
		switch {
		case s.hasActiveAttempt(ctx, exam.ID, studentID):
			entry.Status = LobbyInProgress
		case len(prior) > 0 && !set.AllowRetakes:
			entry.Status = LobbyCompleted
		case set.StartAt != nil && now.Before(*set.StartAt):
			entry.Status = LobbyNotYetOpen
		case set.EndAt != nil && now.After(*set.EndAt):
			entry.Status = LobbyExpired
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Begin starts or resumes an attempt and returns its engine. A dropped
// connection resumes against the original start time kept in Redis, so the
// countdown and the deterministic result identity survive the reconnect.
// Autosaved answers are replayed into the fresh engine.
func (s *AttemptService) Begin(ctx context.Context, studentID int, examID uuid.UUID) (engine *session.Engine, resumed bool, err error) {
	exam, questions, err := s.examService.GetForAttempt(ctx, examID)
	if err != nil {
		return nil, false, err
	}

	prior, err := s.resultRepo.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, false, fmt.Errorf("list prior results: %w", err)
	}

	opts := []session.Option{
		session.WithTabSwitchWarnLimit(s.cfg.TabSwitchWarnLimit),
	}

	startKey := config.CacheKey.AttemptStartKey(examID.String(), studentID)
	if raw, err := s.rdb.Get(ctx, startKey).Result(); err == nil {
		startedAt, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr == nil {
			opts = append(opts, session.WithStartedAt(startedAt))
			resumed = true
			// A resumed attempt already passed its preconditions when it
			// started; prior results written since then must not block it.
			prior = nil
		}
	}

	engine, err = session.Start(*exam, questions, studentID, prior, opts...)
	if err != nil {
		return nil, false, err
	}

	ttl := time.Duration(exam.DurationMinutes)*time.Minute + attemptGracePeriod
	if !resumed {
		if err := s.rdb.Set(ctx, startKey, engine.StartedAt().UTC().Format(time.RFC3339Nano), ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Str("examId", examID.String()).Msg("Failed to persist attempt start time")
		}
	} else {
		s.restoreAnswers(ctx, engine)
	}

	s.logger.Info().
		Str("examId", examID.String()).
		Int("studentId", studentID).
		Bool("resumed", resumed).
		Int("remainingSeconds", engine.Remaining()).
		Msg("Attempt started")
	return engine, resumed, nil
}

// restoreAnswers replays the Redis autosave hash into the engine.
func (s *AttemptService) restoreAnswers(ctx context.Context, engine *session.Engine) {
	key := config.CacheKey.AttemptAnswersKey(engine.ExamID().String(), engine.StudentID())
	saved, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore autosaved answers")
		return
	}
	for field, raw := range saved {
		questionID, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		var ans model.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			continue
		}
		if err := engine.Restore(questionID, ans); err != nil {
			s.logger.Debug().Err(err).Str("questionId", field).Msg("Skipped unrestorable autosaved answer")
		}
	}
}

// SaveAnswer records an answer in the engine and mirrors it to Redis for
// reconnect restore, then queues it for durable persistence.
func (s *AttemptService) SaveAnswer(ctx context.Context, engine *session.Engine, questionID uuid.UUID, ans model.Answer) error {
	if err := engine.Record(questionID, ans); err != nil {
		return err
	}

	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}

	key := config.CacheKey.AttemptAnswersKey(engine.ExamID().String(), engine.StudentID())
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, questionID.String(), raw)
	pipe.Expire(ctx, key, answersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to mirror answer to Redis")
	}

	s.enqueue(ctx, config.WorkerKey.PersistAnswersQueue, model.AutosavePayload{
		ExamID:     engine.ExamID(),
		StudentID:  engine.StudentID(),
		QuestionID: questionID,
		Answer:     ans,
		SavedAt:    time.Now(),
	})
	return nil
}

// RecordCheatEvent counts a tab-visibility-loss event and queues it for
// persistence. The returned warn flag is advisory.
func (s *AttemptService) RecordCheatEvent(ctx context.Context, engine *session.Engine) (count int, warn bool) {
	count, warn = engine.RecordTabSwitch()
	s.enqueue(ctx, config.WorkerKey.PersistCheatsQueue, model.CheatEventPayload{
		ExamID:     engine.ExamID(),
		StudentID:  engine.StudentID(),
		Count:      count,
		OccurredAt: time.Now(),
	})
	return count, warn
}

// Complete submits the attempt, persists its result, and clears the attempt's
// Redis state. Visible reports whether the student may see the scored result
// now or only a completion acknowledgement. An error means the result could
// not be made durable; the attempt state is left in place and the caller can
// retry, which Submit's idempotency makes safe.
func (s *AttemptService) Complete(ctx context.Context, engine *session.Engine) (result *model.Result, visible bool, err error) {
	result, err = engine.Submit()
	if err != nil {
		return nil, false, err
	}

	if err := s.persistResult(ctx, result); err != nil {
		return nil, false, err
	}
	s.clearAttemptState(ctx, engine.ExamID(), engine.StudentID())

	s.logger.Info().
		Str("resultId", result.ID.String()).
		Str("examId", result.ExamID.String()).
		Int("studentId", result.StudentID).
		Float64("percentage", result.Percentage).
		Msg("Attempt completed")
	return result, resultVisible(engine.ExamSettings(), time.Now()), nil
}

// Abandon cancels the attempt and discards all of its Redis state.
func (s *AttemptService) Abandon(ctx context.Context, engine *session.Engine) error {
	if err := engine.Cancel(); err != nil {
		return err
	}
	s.clearAttemptState(ctx, engine.ExamID(), engine.StudentID())
	s.logger.Info().
		Str("examId", engine.ExamID().String()).
		Int("studentId", engine.StudentID()).
		Msg("Attempt abandoned")
	return nil
}

func (s *AttemptService) clearAttemptState(ctx context.Context, examID uuid.UUID, studentID int) {
	keys := []string{
		config.CacheKey.AttemptStartKey(examID.String(), studentID),
		config.CacheKey.AttemptAnswersKey(examID.String(), studentID),
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear attempt state")
	}
}

func (s *AttemptService) hasActiveAttempt(ctx context.Context, examID uuid.UUID, studentID int) bool {
	key := config.CacheKey.AttemptStartKey(examID.String(), studentID)
	n, err := s.rdb.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// persistResult makes a submitted result durable: normally a push onto the
// worker queue, with a direct insert as fallback when the queue is down. The
// deterministic result ID keeps the two paths idempotent against each other,
// so a late queue replay of an already-inserted result is a no-op.
func (s *AttemptService) persistResult(ctx context.Context, result *model.Result) error {
	if err := s.enqueue(ctx, config.WorkerKey.PersistResultsQueue, result); err == nil {
		return nil
	}
	if err := s.resultRepo.Insert(ctx, result); err != nil {
		return fmt.Errorf("persist result %s: %w", result.ID, err)
	}
	s.logger.Warn().
		Str("resultId", result.ID.String()).
		Msg("Result queue unavailable, inserted result directly")
	return nil
}

// enqueue pushes a JSON payload onto a persistence queue. Failures are logged
// and returned; the autosave and cheat callers ignore them because those flows
// must not fail on a persistence backlog, while the result path falls back to
// a direct insert.
func (s *AttemptService) enqueue(ctx context.Context, queue string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("queue", queue).Msg("Failed to encode queue payload")
		return err
	}
	if err := s.rdb.RPush(ctx, queue, raw).Err(); err != nil {
		s.logger.Error().Err(err).Str("queue", queue).Msg("Failed to enqueue payload")
		return err
	}
	return nil
}

// SweepExpiredAttempts finalizes attempts whose deadline passed without a
// live connection to auto-submit them, e.g. a student who disconnected and
// never came back. Autosaved answers are restored and scored exactly as an
// in-connection expiry would score them. Racing a live connection is safe:
// both sides produce the same deterministic result ID, and the insert is
// conflict-free on replay.
func (s *AttemptService) SweepExpiredAttempts(ctx context.Context) (int, error) {
	finalized := 0
	iter := s.rdb.Scan(ctx, 0, config.CacheKey.AttemptStartPattern(), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rawExamID, studentID, ok := config.CacheKey.ParseAttemptStartKey(key)
		if !ok {
			continue
		}
		examID, err := uuid.Parse(rawExamID)
		if err != nil {
			continue
		}
		raw, err := s.rdb.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		startedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			s.clearAttemptState(ctx, examID, studentID)
			continue
		}

		exam, questions, err := s.examService.GetForAttempt(ctx, examID)
		if err != nil {
			// Exam unpublished or deleted mid-attempt; nothing left to score.
			s.clearAttemptState(ctx, examID, studentID)
			continue
		}
		if time.Now().Before(startedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)) {
			continue
		}

		engine, err := session.Start(*exam, questions, studentID, nil,
			session.WithStartedAt(startedAt),
			session.WithTabSwitchWarnLimit(s.cfg.TabSwitchWarnLimit))
		if err != nil {
			s.clearAttemptState(ctx, examID, studentID)
			continue
		}
		s.restoreAnswers(ctx, engine)

		result, err := engine.Submit()
		if err != nil {
			continue
		}
		if err := s.persistResult(ctx, result); err != nil {
			// Key stays put; the next sweep retries.
			s.logger.Error().Err(err).
				Str("examId", examID.String()).
				Int("studentId", studentID).
				Msg("Failed to persist swept result")
			continue
		}
		s.clearAttemptState(ctx, examID, studentID)
		finalized++
		s.logger.Info().
			Str("resultId", result.ID.String()).
			Str("examId", examID.String()).
			Int("studentId", studentID).
			Msg("Expired attempt finalized by sweep")
	}
	return finalized, iter.Err()
}

// RunExpirySweep drives SweepExpiredAttempts on a fixed interval until the
// context is cancelled. The interval must stay well under attemptGracePeriod
// so an expired attempt is swept before its start key's TTL lapses.
func (s *AttemptService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	s.logger.Info().Dur("interval", interval).Msg("Expiry sweep started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Expiry sweep stopped")
			return
		case <-ticker.C:
			n, err := s.SweepExpiredAttempts(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Expiry sweep pass failed")
			} else if n > 0 {
				s.logger.Info().Int("finalized", n).Msg("Expiry sweep finalized attempts")
			}
		}
	}
}

// StudentResults retrieves a student's result history, redacting entries whose
// exams defer result visibility.
func (s *AttemptService) StudentResults(ctx context.Context, studentID int) ([]model.Result, error) {
	results, err := s.resultRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	now := time.Now()
	visible := make([]model.Result, 0, len(results))
	for _, res := range results {
		exam, err := s.examService.examRepo.GetByID(ctx, res.ExamID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // exam deleted, cascade will have removed this row soon
			}
			return nil, fmt.Errorf("get exam: %w", err)
		}
		if resultVisible(exam.Settings, now) {
			visible = append(visible, res)
		} else {
			visible = append(visible, redactResult(res))
		}
	}
	return visible, nil
}

// StudentResult retrieves one result for its owning student, enforcing the
// exam's visibility rule.
func (s *AttemptService) StudentResult(ctx context.Context, studentID int, resultID uuid.UUID) (*model.Result, error) {
	res, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if res.StudentID != studentID {
		return nil, ErrNotResultOwner
	}

	exam, err := s.examService.examRepo.GetByID(ctx, res.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !resultVisible(exam.Settings, time.Now()) {
		return nil, ErrResultsDeferred
	}
	return res, nil
}

// resultVisible applies the exam's result-visibility rule: scores show
// immediately when configured, otherwise only after the availability window
// closes.
func resultVisible(s model.ExamSettings, now time.Time) bool {
	if s.ShowResultsImmediately {
		return true
	}
	return s.EndAt != nil && now.After(*s.EndAt)
}

// redactResult strips scores and per-answer outcomes from a deferred result,
// leaving only the fact that the attempt completed.
func redactResult(res model.Result) model.Result {
	return model.Result{
		ID:               res.ID,
		ExamID:           res.ExamID,
		StudentID:        res.StudentID,
		StartedAt:        res.StartedAt,
		CompletedAt:      res.CompletedAt,
		TimeSpentSeconds: res.TimeSpentSeconds,
	}
}
