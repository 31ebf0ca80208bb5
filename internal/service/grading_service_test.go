package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/model"
)

func gradableResult() *model.Result {
	return &model.Result{
		ID:          uuid.New(),
		TotalPoints: 10,
		Score:       5,
		Percentage:  50,
		Answers: []model.AnswerRecord{
			{
				QuestionID: uuid.New(),
				Type:       model.QuestionSingleChoice,
				Points:     5, EarnedPoints: 5, IsCorrect: true,
			},
			{
				QuestionID: uuid.New(),
				Type:       model.QuestionEssay,
				Points:     5,
			},
		},
	}
}

func TestApplyGradesStampsResult(t *testing.T) {
	res := gradableResult()
	essayID := res.Answers[1].QuestionID
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	settings := model.ExamSettings{PassingScore: 60}

	err := applyGrades(res, settings, []model.GradeAnswerInput{
		{QuestionID: essayID, EarnedPoints: 3, Feedback: "solid argument, thin evidence"},
	}, now)
	if err != nil {
		t.Fatalf("applyGrades: %v", err)
	}

	if res.Score != 8 || res.Percentage != 80 || !res.Passed {
		t.Errorf("aggregates = score %v pct %v passed %v, want 8 / 80 / true", res.Score, res.Percentage, res.Passed)
	}
	if !res.ManuallyGraded {
		t.Error("ManuallyGraded not set")
	}
	if res.GradedAt == nil || !res.GradedAt.Equal(now) {
		t.Errorf("GradedAt = %v, want %v set on the returned result", res.GradedAt, now)
	}

	rec := res.Answers[1]
	if rec.EarnedPoints != 3 || !rec.IsCorrect || !rec.Graded || rec.Feedback == "" {
		t.Errorf("essay record not overridden: %+v", rec)
	}
}

func TestApplyGradesZeroPointsMarksIncorrect(t *testing.T) {
	res := gradableResult()
	essayID := res.Answers[1].QuestionID

	err := applyGrades(res, model.ExamSettings{PassingScore: 60}, []model.GradeAnswerInput{
		{QuestionID: essayID, EarnedPoints: 0},
	}, time.Now())
	if err != nil {
		t.Fatalf("applyGrades: %v", err)
	}
	if rec := res.Answers[1]; rec.IsCorrect || !rec.Graded {
		t.Errorf("zero-point grade should stay incorrect but graded, got %+v", rec)
	}
	if res.Passed {
		t.Error("50% should not pass a 60% threshold")
	}
}

func TestApplyGradesRejectsBadInput(t *testing.T) {
	res := gradableResult()
	autoID := res.Answers[0].QuestionID
	essayID := res.Answers[1].QuestionID

	tests := []struct {
		name string
		in   model.GradeAnswerInput
		want error
	}{
		{"unknown question", model.GradeAnswerInput{QuestionID: uuid.New(), EarnedPoints: 1}, ErrAnswerNotInResult},
		{"auto-scored type", model.GradeAnswerInput{QuestionID: autoID, EarnedPoints: 1}, ErrNotGradable},
		{"above max points", model.GradeAnswerInput{QuestionID: essayID, EarnedPoints: 6}, ErrPointsOutOfRange},
		{"negative points", model.GradeAnswerInput{QuestionID: essayID, EarnedPoints: -1}, ErrPointsOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyGrades(res, model.ExamSettings{}, []model.GradeAnswerInput{tt.in}, time.Now())
			if !errors.Is(err, tt.want) {
				t.Errorf("applyGrades() error = %v, want %v", err, tt.want)
			}
		})
	}
}
