package scoring

import (
	"strings"

	"github.com/examroom/examroom-backend/internal/model"
)

// Outcome is the scored verdict for one question.
type Outcome struct {
	Correct bool
	Earned  float64
}

// Score evaluates one submitted answer against its question's canonical key.
// All index comparisons use canonical (unshuffled) option indices; display
// order must never reach this package.
//
// Reference behavior carried as-is:
//   - A wrong or absent choice-type answer is penalized under negative marking.
//   - Text types (short_answer/fill_blank) never receive negative marking.
//   - An unset answer key degrades to "incorrect, no penalty" instead of an
//     error, so a partially configured exam can still be submitted.
//   - Essays are never auto-scored; they stay at 0 pending manual grading.
func Score(q model.Question, ans model.Answer, settings model.ExamSettings) Outcome {
	switch q.Type {
	case model.QuestionSingleChoice:
		if q.CorrectChoice == nil {
			return Outcome{}
		}
		if ans.Choice != nil && *ans.Choice == *q.CorrectChoice {
			return Outcome{Correct: true, Earned: q.Points}
		}
		return Outcome{Earned: -settings.EffectivePenalty() * q.Points}

	case model.QuestionTrueFalse:
		key := strings.TrimSpace(q.CorrectText)
		if key == "" {
			return Outcome{}
		}
		if ans.Text != nil && strings.EqualFold(strings.TrimSpace(*ans.Text), key) {
			return Outcome{Correct: true, Earned: q.Points}
		}
		return Outcome{Earned: -settings.EffectivePenalty() * q.Points}

	case model.QuestionMultiSelect:
		if len(q.CorrectChoices) == 0 {
			return Outcome{}
		}
		if equalIndexSets(ans.Choices, q.CorrectChoices) {
			return Outcome{Correct: true, Earned: q.Points}
		}
		return Outcome{Earned: -settings.EffectivePenalty() * q.Points}

	case model.QuestionShortAnswer, model.QuestionFillBlank:
		accepted := q.AcceptedAlternatives()
		if len(accepted) == 0 {
			return Outcome{}
		}
		if ans.Text == nil {
			return Outcome{}
		}
		submitted := strings.ToLower(strings.TrimSpace(*ans.Text))
		for _, alt := range accepted {
			if submitted == alt {
				return Outcome{Correct: true, Earned: q.Points}
			}
		}
		return Outcome{}

	case model.QuestionEssay:
		return Outcome{}
	}

	return Outcome{}
}

// Percentage computes 100×score/total, defined as 0 when total is 0.
func Percentage(score, total float64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * score / total
}

// Passed reports whether a percentage meets the passing threshold.
func Passed(percentage, threshold float64) bool {
	return percentage >= threshold
}

// equalIndexSets compares two index slices as sets: order-independent,
// duplicates ignored.
func equalIndexSets(a, b []int) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(in []int) map[int]struct{} {
	out := make(map[int]struct{}, len(in))
	for _, v := range in {
		out[v] = struct{}{}
	}
	return out
}
