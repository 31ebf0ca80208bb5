package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one captured answer slot. Exactly one field is set, matching the
// question type: Choice for single_choice, Choices for multi_select, Text for
// true_false/short_answer/fill_blank/essay. A zero Answer means "not answered".
type Answer struct {
	Choice  *int    `json:"choice,omitempty"`
	Choices []int   `json:"choices,omitempty"`
	Text    *string `json:"text,omitempty"`
}

// IsEmpty reports whether no value was captured.
func (a Answer) IsEmpty() bool {
	return a.Choice == nil && len(a.Choices) == 0 && (a.Text == nil || *a.Text == "")
}

// AnswerRecord is the scored outcome for one question inside a Result.
// EarnedPoints may be negative under negative marking, and is later overridden
// in place by manual grading for essay/short-answer items.
type AnswerRecord struct {
	QuestionID   uuid.UUID    `json:"question_id"`
	Prompt       string       `json:"prompt"`
	Type         QuestionType `json:"type"`
	Submitted    Answer       `json:"submitted"`
	CorrectText  string       `json:"correct_text,omitempty"`
	CorrectIndex *int         `json:"correct_index,omitempty"`
	CorrectSet   []int        `json:"correct_set,omitempty"`
	IsCorrect    bool         `json:"is_correct"`
	Points       float64      `json:"points"`
	EarnedPoints float64      `json:"earned_points"`
	Feedback     string       `json:"feedback,omitempty"`
	Graded       bool         `json:"graded"`
}

// Result is the immutable record of one completed attempt. Its identifier is
// derived deterministically from (exam, student, attempt start) so a retried
// submission maps onto the same row.
type Result struct {
	ID               uuid.UUID      `json:"id"`
	ExamID           uuid.UUID      `json:"exam_id"`
	StudentID        int            `json:"student_id"`
	Answers          []AnswerRecord `json:"answers"`
	Score            float64        `json:"score"`
	TotalPoints      float64        `json:"total_points"`
	Percentage       float64        `json:"percentage"`
	Passed           bool           `json:"passed"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      time.Time      `json:"completed_at"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	TabSwitches      int            `json:"tab_switches"`
	ManuallyGraded   bool           `json:"manually_graded"`
	GradedAt         *time.Time     `json:"graded_at,omitempty"`
}

// resultNamespace is the UUIDv5 namespace for deterministic result IDs.
var resultNamespace = uuid.MustParse("7f1c9a52-3b8e-4d2a-9c61-08f4e5a0d6b3")

// ResultID derives the deterministic identifier for one attempt. The same
// (exam, student, start time) always yields the same ID, which makes the
// result append idempotent across submission retries.
func ResultID(examID uuid.UUID, studentID int, startedAt time.Time) uuid.UUID {
	seed := make([]byte, 0, 64)
	seed = append(seed, examID[:]...)
	seed = append(seed, byte(studentID>>24), byte(studentID>>16), byte(studentID>>8), byte(studentID))
	seed = startedAt.UTC().AppendFormat(seed, time.RFC3339Nano)
	return uuid.NewSHA1(resultNamespace, seed)
}

// ExamStats aggregates one exam's results for the teacher's analytics view.
// PassRate is a percentage of attempts; Ungraded counts results that have not
// been through a manual grading pass yet.
type ExamStats struct {
	ExamID              uuid.UUID `json:"exam_id"`
	Attempts            int       `json:"attempts"`
	AvgScore            float64   `json:"avg_score"`
	AvgPercentage       float64   `json:"avg_percentage"`
	PassRate            float64   `json:"pass_rate"`
	BestPercentage      float64   `json:"best_percentage"`
	WorstPercentage     float64   `json:"worst_percentage"`
	AvgTimeSpentSeconds float64   `json:"avg_time_spent_seconds"`
	Ungraded            int       `json:"ungraded"`
}

// GradeAnswerInput is one per-answer override in a manual grading request.
type GradeAnswerInput struct {
	QuestionID   uuid.UUID `json:"question_id" binding:"required"`
	EarnedPoints float64   `json:"earned_points"`
	Feedback     string    `json:"feedback" binding:"omitempty,max=4000"`
}

// GradeResultRequest is the payload for manually grading a result's essay and
// short-answer items.
type GradeResultRequest struct {
	Answers []GradeAnswerInput `json:"answers" binding:"required,min=1,dive"`
}
