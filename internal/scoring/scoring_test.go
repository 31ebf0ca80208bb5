package scoring

import (
	"math"
	"testing"

	"github.com/examroom/examroom-backend/internal/model"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreSingleChoice(t *testing.T) {
	q := model.Question{
		Type:          model.QuestionSingleChoice,
		Options:       []string{"a", "b", "c"},
		CorrectChoice: intp(1),
		Points:        4,
	}

	tests := []struct {
		name        string
		ans         model.Answer
		settings    model.ExamSettings
		wantCorrect bool
		wantEarned  float64
	}{
		{"correct", model.Answer{Choice: intp(1)}, model.ExamSettings{}, true, 4},
		{"wrong no penalty", model.Answer{Choice: intp(0)}, model.ExamSettings{}, false, 0},
		{"absent no penalty", model.Answer{}, model.ExamSettings{}, false, 0},
		{
			"wrong with penalty",
			model.Answer{Choice: intp(2)},
			model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.5},
			false, -2,
		},
		{
			"absent with penalty",
			model.Answer{},
			model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.5},
			false, -2,
		},
		{
			"default penalty fraction",
			model.Answer{Choice: intp(0)},
			model.ExamSettings{NegativeMarking: true},
			false, -1, // 0.25 * 4
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(q, tt.ans, tt.settings)
			if got.Correct != tt.wantCorrect || !almostEqual(got.Earned, tt.wantEarned) {
				t.Errorf("Score() = %+v, want correct=%v earned=%v", got, tt.wantCorrect, tt.wantEarned)
			}
		})
	}
}

func TestScoreSingleChoiceUnsetKey(t *testing.T) {
	q := model.Question{Type: model.QuestionSingleChoice, Options: []string{"a", "b"}, Points: 3}
	got := Score(q, model.Answer{Choice: intp(0)}, model.ExamSettings{NegativeMarking: true})
	if got.Correct || got.Earned != 0 {
		t.Errorf("unset key should score incorrect with no penalty, got %+v", got)
	}
}

func TestScoreTrueFalse(t *testing.T) {
	q := model.Question{Type: model.QuestionTrueFalse, CorrectText: "true", Points: 2}

	tests := []struct {
		name        string
		ans         model.Answer
		settings    model.ExamSettings
		wantCorrect bool
		wantEarned  float64
	}{
		{"exact match", model.Answer{Text: strp("true")}, model.ExamSettings{}, true, 2},
		{"case insensitive", model.Answer{Text: strp("TRUE")}, model.ExamSettings{}, true, 2},
		{"whitespace tolerated", model.Answer{Text: strp("  True ")}, model.ExamSettings{}, true, 2},
		{"wrong", model.Answer{Text: strp("false")}, model.ExamSettings{}, false, 0},
		{
			"wrong with penalty",
			model.Answer{Text: strp("false")},
			model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.25},
			false, -0.5,
		},
		{
			"absent with penalty",
			model.Answer{},
			model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.25},
			false, -0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(q, tt.ans, tt.settings)
			if got.Correct != tt.wantCorrect || !almostEqual(got.Earned, tt.wantEarned) {
				t.Errorf("Score() = %+v, want correct=%v earned=%v", got, tt.wantCorrect, tt.wantEarned)
			}
		})
	}
}

func TestScoreMultiSelect(t *testing.T) {
	q := model.Question{
		Type:           model.QuestionMultiSelect,
		Options:        []string{"a", "b", "c", "d"},
		CorrectChoices: []int{0, 2},
		Points:         3,
	}

	tests := []struct {
		name        string
		ans         model.Answer
		settings    model.ExamSettings
		wantCorrect bool
		wantEarned  float64
	}{
		{"exact set", model.Answer{Choices: []int{0, 2}}, model.ExamSettings{}, true, 3},
		{"order independent", model.Answer{Choices: []int{2, 0}}, model.ExamSettings{}, true, 3},
		{"duplicates ignored", model.Answer{Choices: []int{0, 2, 2}}, model.ExamSettings{}, true, 3},
		{"partial is wrong", model.Answer{Choices: []int{0}}, model.ExamSettings{}, false, 0},
		{"superset is wrong", model.Answer{Choices: []int{0, 1, 2}}, model.ExamSettings{}, false, 0},
		{
			"wrong with penalty",
			model.Answer{Choices: []int{1}},
			model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.25},
			false, -0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(q, tt.ans, tt.settings)
			if got.Correct != tt.wantCorrect || !almostEqual(got.Earned, tt.wantEarned) {
				t.Errorf("Score() = %+v, want correct=%v earned=%v", got, tt.wantCorrect, tt.wantEarned)
			}
		})
	}
}

func TestScoreShortAnswer(t *testing.T) {
	q := model.Question{
		Type:        model.QuestionShortAnswer,
		CorrectText: "Au; gold ;AURUM",
		Points:      2,
	}
	penalized := model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.5}

	tests := []struct {
		name        string
		ans         model.Answer
		wantCorrect bool
		wantEarned  float64
	}{
		{"first alternative", model.Answer{Text: strp("Au")}, true, 2},
		{"second alternative trimmed", model.Answer{Text: strp(" gold ")}, true, 2},
		{"case folded", model.Answer{Text: strp("aurum")}, true, 2},
		{"wrong never penalized", model.Answer{Text: strp("Ag")}, false, 0},
		{"absent never penalized", model.Answer{}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(q, tt.ans, penalized)
			if got.Correct != tt.wantCorrect || !almostEqual(got.Earned, tt.wantEarned) {
				t.Errorf("Score() = %+v, want correct=%v earned=%v", got, tt.wantCorrect, tt.wantEarned)
			}
		})
	}
}

func TestScoreFillBlankUnsetKey(t *testing.T) {
	q := model.Question{Type: model.QuestionFillBlank, Points: 2}
	got := Score(q, model.Answer{Text: strp("anything")}, model.ExamSettings{NegativeMarking: true})
	if got.Correct || got.Earned != 0 {
		t.Errorf("unset key should score incorrect with no penalty, got %+v", got)
	}
}

func TestScoreEssayAlwaysZero(t *testing.T) {
	q := model.Question{Type: model.QuestionEssay, CorrectText: "reference answer", Points: 10}
	got := Score(q, model.Answer{Text: strp("a long considered response")}, model.ExamSettings{NegativeMarking: true})
	if got.Correct || got.Earned != 0 {
		t.Errorf("essay must stay at zero pending manual grading, got %+v", got)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want float64
	}{
		{5, 10, 50},
		{10, 10, 100},
		{-2, 8, -25},
		{0, 0, 0},
		{3, 0, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); !almostEqual(got, tt.want) {
			t.Errorf("Percentage(%v, %v) = %v, want %v", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestPassed(t *testing.T) {
	if !Passed(60, 60) {
		t.Error("exact threshold should pass")
	}
	if Passed(59.9, 60) {
		t.Error("below threshold should not pass")
	}
	if !Passed(0, 0) {
		t.Error("zero threshold should always pass")
	}
}
