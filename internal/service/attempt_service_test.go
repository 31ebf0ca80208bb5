package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/session"
)

type stubResultStore struct {
	inserted  []*model.Result
	insertErr error
}

func (s *stubResultStore) Insert(_ context.Context, res *model.Result) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, res)
	return nil
}

func (s *stubResultStore) GetByID(context.Context, uuid.UUID) (*model.Result, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubResultStore) ListByStudent(context.Context, int) ([]model.Result, error) {
	return nil, nil
}

func (s *stubResultStore) ListByExamAndStudent(context.Context, uuid.UUID, int) ([]model.Result, error) {
	return nil, nil
}

// unreachableRedis returns a client whose every command fails fast, standing
// in for a Redis outage.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func startAttemptEngine(t *testing.T) *session.Engine {
	t.Helper()
	exam := model.Exam{
		ID:              uuid.New(),
		DurationMinutes: 10,
		Status:          model.ExamStatusPublished,
		Settings:        model.ExamSettings{ShowResultsImmediately: true},
	}
	questions := []model.Question{
		{
			ID:            uuid.New(),
			ExamID:        exam.ID,
			Type:          model.QuestionSingleChoice,
			Prompt:        "2 + 2?",
			Options:       []string{"3", "4"},
			CorrectChoice: intp(1),
			Points:        4,
		},
	}
	engine, err := session.Start(exam, questions, 7, nil)
	if err != nil {
		t.Fatalf("session.Start: %v", err)
	}
	return engine
}

func intp(v int) *int { return &v }

func TestCompleteInsertsDirectlyWhenQueueDown(t *testing.T) {
	store := &stubResultStore{}
	svc := NewAttemptService(nil, store, unreachableRedis(), &config.Config{}, zerolog.Nop())
	engine := startAttemptEngine(t)

	result, visible, err := svc.Complete(context.Background(), engine)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !visible {
		t.Error("result should be visible with ShowResultsImmediately")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d results, want 1", len(store.inserted))
	}
	if store.inserted[0].ID != result.ID {
		t.Errorf("inserted result %s, want %s", store.inserted[0].ID, result.ID)
	}
}

func TestCompleteSurfacesPersistenceFailure(t *testing.T) {
	store := &stubResultStore{insertErr: errors.New("database unavailable")}
	svc := NewAttemptService(nil, store, unreachableRedis(), &config.Config{}, zerolog.Nop())
	engine := startAttemptEngine(t)

	if _, _, err := svc.Complete(context.Background(), engine); err == nil {
		t.Fatal("Complete should fail when neither the queue nor the direct insert succeeds")
	}

	// Submit is idempotent, so the client-driven retry lands on the same
	// result once the store recovers.
	store.insertErr = nil
	result, _, err := svc.Complete(context.Background(), engine)
	if err != nil {
		t.Fatalf("Complete retry: %v", err)
	}
	if len(store.inserted) != 1 || store.inserted[0].ID != result.ID {
		t.Errorf("retry inserted %d results, want exactly the original", len(store.inserted))
	}
}
