package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// DefaultPenaltyFraction is applied when negative marking is enabled but no
// per-point penalty was configured.
const DefaultPenaltyFraction = 0.25

// ExamSettings is the per-exam behaviour record.
type ExamSettings struct {
	StartAt                *time.Time `json:"start_at,omitempty"`
	EndAt                  *time.Time `json:"end_at,omitempty"`
	ShuffleQuestions       bool       `json:"shuffle_questions"`
	ShuffleOptions         bool       `json:"shuffle_options"`
	AllowRetakes           bool       `json:"allow_retakes"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
	PassingScore           float64    `json:"passing_score"`
	NegativeMarking        bool       `json:"negative_marking"`
	PenaltyFraction        float64    `json:"penalty_fraction"`
}

// EffectivePenalty returns the penalty fraction applied to a wrong choice-type
// answer, or 0 when negative marking is disabled.
func (s ExamSettings) EffectivePenalty() float64 {
	if !s.NegativeMarking {
		return 0
	}
	if s.PenaltyFraction <= 0 {
		return DefaultPenaltyFraction
	}
	return s.PenaltyFraction
}

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID    `json:"id"`
	TeacherID       int          `json:"teacher_id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	DurationMinutes int          `json:"duration_minutes"`
	Status          ExamStatus   `json:"status"`
	Settings        ExamSettings `json:"settings"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Validate checks the exam-level invariants.
func (e *Exam) Validate() error {
	if e.DurationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	s := e.Settings
	if s.StartAt != nil && s.EndAt != nil && !s.StartAt.Before(*s.EndAt) {
		return errors.New("availability window start must precede end")
	}
	return nil
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string       `json:"title" binding:"required,min=3,max=255"`
	Description     string       `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int          `json:"duration_minutes" binding:"required,min=1,max=480"`
	Settings        ExamSettings `json:"settings"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title           string        `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string       `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int           `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Settings        *ExamSettings `json:"settings" binding:"omitempty"`
}

// QuestionForStudent is a question stripped of its answer key.
type QuestionForStudent struct {
	ID       uuid.UUID    `json:"id"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Options  []string     `json:"options,omitempty"`
	Points   float64      `json:"points"`
	Position int          `json:"position"`
}

// ExamPayload is the Redis-cached exam sent to students (no correct answers).
type ExamPayload struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}
