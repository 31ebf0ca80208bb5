package model

import (
	"time"

	"github.com/google/uuid"
)

// AutosavePayload is one captured answer queued for durable persistence. The
// Redis hash copy serves reconnect restores; this payload feeds the audit
// table behind it.
type AutosavePayload struct {
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  int       `json:"student_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     Answer    `json:"answer"`
	SavedAt    time.Time `json:"saved_at"`
}

// CheatEventPayload is one tab-visibility-loss event queued for persistence.
type CheatEventPayload struct {
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  int       `json:"student_id"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}
