package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// QuestionType is a closed enum over the six evaluable question kinds.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionMultiSelect  QuestionType = "multi_select"
	QuestionShortAnswer  QuestionType = "short_answer"
	QuestionFillBlank    QuestionType = "fill_blank"
	QuestionEssay        QuestionType = "essay"
)

// Question represents a single evaluable exam item.
//
// Exactly one correct-answer field is meaningful per type:
//   - single_choice: CorrectChoice (canonical option index)
//   - multi_select:  CorrectChoices (set of canonical option indices)
//   - true_false:    CorrectText ("true" or "false")
//   - short_answer / fill_blank: CorrectText (semicolon-delimited alternatives)
//   - essay:         CorrectText (optional reference answer, never auto-scored)
type Question struct {
	ID             uuid.UUID    `json:"id"`
	ExamID         uuid.UUID    `json:"exam_id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	CorrectChoice  *int         `json:"correct_choice,omitempty"`
	CorrectChoices []int        `json:"correct_choices,omitempty"`
	CorrectText    string       `json:"correct_text,omitempty"`
	Points         float64      `json:"points"`
	Category       string       `json:"category,omitempty"`
	Position       int          `json:"position"`
}

// HasOptions reports whether the question type carries an ordered option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionSingleChoice || t == QuestionMultiSelect
}

// IsTextual reports whether the question is answered with free text.
func (t QuestionType) IsTextual() bool {
	return t == QuestionShortAnswer || t == QuestionFillBlank || t == QuestionEssay
}

// Valid reports whether t is one of the six known kinds.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionTrueFalse, QuestionMultiSelect,
		QuestionShortAnswer, QuestionFillBlank, QuestionEssay:
		return true
	}
	return false
}

// AcceptedAlternatives splits CorrectText on ';' and returns the trimmed,
// case-folded accepted answers for short_answer/fill_blank questions.
// Empty alternatives are dropped; an unset key yields an empty slice.
func (q *Question) AcceptedAlternatives() []string {
	if q.CorrectText == "" {
		return nil
	}
	parts := strings.Split(q.CorrectText, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the per-type answer-key shape invariant.
func (q *Question) Validate() error {
	if !q.Type.Valid() {
		return errors.New("unknown question type")
	}
	if q.Points < 0 {
		return errors.New("points must be non-negative")
	}
	switch q.Type {
	case QuestionSingleChoice:
		if len(q.Options) < 2 {
			return errors.New("single_choice requires at least two options")
		}
		if q.CorrectChoice == nil || *q.CorrectChoice < 0 || *q.CorrectChoice >= len(q.Options) {
			return errors.New("single_choice requires a correct option index in range")
		}
	case QuestionMultiSelect:
		if len(q.Options) < 2 {
			return errors.New("multi_select requires at least two options")
		}
		if len(q.CorrectChoices) == 0 {
			return errors.New("multi_select requires at least one correct index")
		}
		for _, i := range q.CorrectChoices {
			if i < 0 || i >= len(q.Options) {
				return errors.New("multi_select correct index out of range")
			}
		}
	case QuestionTrueFalse:
		v := strings.ToLower(strings.TrimSpace(q.CorrectText))
		if v != "true" && v != "false" {
			return errors.New(`true_false requires correct_text "true" or "false"`)
		}
	case QuestionShortAnswer, QuestionFillBlank, QuestionEssay:
		// CorrectText is optional: an unset key scores as incorrect with no
		// penalty rather than blocking a partially configured exam.
	}
	return nil
}

// QuestionInput is the payload for one question in a ReplaceQuestionsRequest.
type QuestionInput struct {
	Type           string   `json:"type" binding:"required,oneof=single_choice true_false multi_select short_answer fill_blank essay"`
	Prompt         string   `json:"prompt" binding:"required,min=1,max=4000"`
	Options        []string `json:"options" binding:"omitempty,max=10,dive,max=500"`
	CorrectChoice  *int     `json:"correct_choice" binding:"omitempty,min=0"`
	CorrectChoices []int    `json:"correct_choices" binding:"omitempty,dive,min=0"`
	CorrectText    string   `json:"correct_text" binding:"omitempty,max=4000"`
	Points         float64  `json:"points" binding:"omitempty,min=0"`
	Category       string   `json:"category" binding:"omitempty,max=100"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}
