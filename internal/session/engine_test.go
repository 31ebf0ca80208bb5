package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func testQuestions(examID uuid.UUID) []model.Question {
	return []model.Question{
		{
			ID:            uuid.New(),
			ExamID:        examID,
			Type:          model.QuestionSingleChoice,
			Prompt:        "pick b",
			Options:       []string{"a", "b", "c", "d"},
			CorrectChoice: intp(1),
			Points:        4,
			Position:      0,
		},
		{
			ID:          uuid.New(),
			ExamID:      examID,
			Type:        model.QuestionTrueFalse,
			Prompt:      "yes?",
			CorrectText: "true",
			Points:      2,
			Position:    1,
		},
		{
			ID:             uuid.New(),
			ExamID:         examID,
			Type:           model.QuestionMultiSelect,
			Prompt:         "pick a and c",
			Options:        []string{"a", "b", "c"},
			CorrectChoices: []int{0, 2},
			Points:         3,
			Position:       2,
		},
		{
			ID:          uuid.New(),
			ExamID:      examID,
			Type:        model.QuestionShortAnswer,
			Prompt:      "symbol for gold",
			CorrectText: "Au; gold",
			Points:      2,
			Position:    3,
		},
		{
			ID:       uuid.New(),
			ExamID:   examID,
			Type:     model.QuestionEssay,
			Prompt:   "explain",
			Points:   5,
			Position: 4,
		},
	}
}

func testExam(settings model.ExamSettings) model.Exam {
	return model.Exam{
		ID:              uuid.New(),
		TeacherID:       1,
		Title:           "test exam",
		DurationMinutes: 10,
		Status:          model.ExamStatusPublished,
		Settings:        settings,
	}
}

func mustStart(t *testing.T, exam model.Exam, questions []model.Question, opts ...Option) *Engine {
	t.Helper()
	e, err := Start(exam, questions, 42, nil, opts...)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return e
}

func answerAllCorrect(t *testing.T, e *Engine, questions []model.Question) {
	t.Helper()
	for _, q := range questions {
		var ans model.Answer
		switch q.Type {
		case model.QuestionSingleChoice:
			ans = model.Answer{Choice: q.CorrectChoice}
		case model.QuestionTrueFalse:
			ans = model.Answer{Text: strp("true")}
		case model.QuestionMultiSelect:
			ans = model.Answer{Choices: q.CorrectChoices}
		case model.QuestionShortAnswer, model.QuestionFillBlank:
			ans = model.Answer{Text: strp("Au")}
		case model.QuestionEssay:
			ans = model.Answer{Text: strp("an essay")}
		}
		if err := e.Record(q.ID, ans); err != nil {
			t.Fatalf("Record(%s) error: %v", q.ID, err)
		}
	}
}

func TestStartPreconditions(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)
	prior := []model.Result{{ID: uuid.New()}}

	t.Run("already attempted", func(t *testing.T) {
		_, err := Start(exam, questions, 42, prior)
		if !errors.Is(err, ErrAlreadyAttempted) {
			t.Errorf("err = %v, want ErrAlreadyAttempted", err)
		}
	})

	t.Run("retakes allowed", func(t *testing.T) {
		retakes := exam
		retakes.Settings.AllowRetakes = true
		if _, err := Start(retakes, questions, 42, prior); err != nil {
			t.Errorf("err = %v, want nil", err)
		}
	})

	t.Run("not yet available", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		gated := exam
		gated.Settings.StartAt = &future
		_, err := Start(gated, questions, 42, nil)
		if !errors.Is(err, ErrNotYetAvailable) {
			t.Errorf("err = %v, want ErrNotYetAvailable", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		closed := exam
		closed.Settings.EndAt = &past
		_, err := Start(closed, questions, 42, nil)
		if !errors.Is(err, ErrExamExpired) {
			t.Errorf("err = %v, want ErrExamExpired", err)
		}
	})

	t.Run("no questions", func(t *testing.T) {
		_, err := Start(exam, nil, 42, nil)
		if !errors.Is(err, ErrNoQuestions) {
			t.Errorf("err = %v, want ErrNoQuestions", err)
		}
	})
}

func TestViewPreservesCanonicalIndices(t *testing.T) {
	exam := testExam(model.ExamSettings{ShuffleQuestions: true, ShuffleOptions: true})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions, WithRand(rand.New(rand.NewSource(7))))

	byID := make(map[uuid.UUID]model.Question)
	for _, q := range questions {
		byID[q.ID] = q
	}

	view := e.View()
	if len(view) != len(questions) {
		t.Fatalf("view has %d questions, want %d", len(view), len(questions))
	}
	for _, dq := range view {
		q := byID[dq.ID]
		for _, opt := range dq.Options {
			if q.Options[opt.Index] != opt.Text {
				t.Errorf("option text %q does not match canonical index %d", opt.Text, opt.Index)
			}
		}
	}
}

func TestShuffleDoesNotAffectScoring(t *testing.T) {
	settings := model.ExamSettings{PassingScore: 60}

	var scores []float64
	for _, shuffled := range []bool{false, true} {
		s := settings
		s.ShuffleQuestions = shuffled
		s.ShuffleOptions = shuffled
		exam := testExam(s)
		qs := testQuestions(exam.ID)

		e := mustStart(t, exam, qs, WithRand(rand.New(rand.NewSource(99))))
		answerAllCorrect(t, e, qs)
		res, err := e.Submit()
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		scores = append(scores, res.Score)

		// Records come back in original exam order regardless of display.
		for i, rec := range res.Answers {
			if rec.QuestionID != qs[i].ID {
				t.Errorf("record %d is %s, want canonical order %s", i, rec.QuestionID, qs[i].ID)
			}
		}
	}
	if scores[0] != scores[1] {
		t.Errorf("shuffled score %v differs from unshuffled %v", scores[1], scores[0])
	}
	// All auto-scorable answers correct: 4+2+3+2 of 16 total (essay pending).
	if scores[0] != 11 {
		t.Errorf("score = %v, want 11", scores[0])
	}
}

func TestRecordSemantics(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	q := questions[0]
	if err := e.Record(q.ID, model.Answer{Choice: intp(0)}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	// Overwrite is allowed; last write wins.
	if err := e.Record(q.ID, model.Answer{Choice: q.CorrectChoice}); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}

	if err := e.Record(uuid.New(), model.Answer{Choice: intp(0)}); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("err = %v, want ErrUnknownQuestion", err)
	}

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !res.Answers[0].IsCorrect {
		t.Error("overwritten answer should score as the last recorded value")
	}

	if err := e.Record(q.ID, model.Answer{Choice: intp(0)}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("err after submit = %v, want ErrAttemptClosed", err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)
	answerAllCorrect(t, e, questions)

	first, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	second, err := e.Submit()
	if err != nil {
		t.Fatalf("second Submit error: %v", err)
	}
	if first != second {
		t.Error("double submit must return the same result")
	}

	want := model.ResultID(exam.ID, 42, e.StartedAt())
	if first.ID != want {
		t.Errorf("result ID %s not deterministic, want %s", first.ID, want)
	}
}

func TestNoNegativesWithoutNegativeMarking(t *testing.T) {
	exam := testExam(model.ExamSettings{PassingScore: 50})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	// Answer everything wrong.
	e.Record(questions[0].ID, model.Answer{Choice: intp(3)})
	e.Record(questions[1].ID, model.Answer{Text: strp("false")})
	e.Record(questions[2].ID, model.Answer{Choices: []int{1}})
	e.Record(questions[3].ID, model.Answer{Text: strp("Ag")})

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0 without negative marking", res.Score)
	}
	for _, rec := range res.Answers {
		if rec.EarnedPoints < 0 {
			t.Errorf("question %s earned %v, negatives forbidden here", rec.QuestionID, rec.EarnedPoints)
		}
	}
	if res.Passed {
		t.Error("0% must not pass a 50% threshold")
	}
}

func TestNegativeMarkingExactPenalty(t *testing.T) {
	exam := testExam(model.ExamSettings{NegativeMarking: true, PenaltyFraction: 0.5})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	// Wrong single choice: -0.5 * 4. Everything else untouched; the absent
	// choice types are penalized too, the absent text types are not.
	e.Record(questions[0].ID, model.Answer{Choice: intp(0)})

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Answers[0].EarnedPoints != -2 {
		t.Errorf("wrong single choice earned %v, want -2", res.Answers[0].EarnedPoints)
	}
	if res.Answers[1].EarnedPoints != -1 {
		t.Errorf("absent true/false earned %v, want -1", res.Answers[1].EarnedPoints)
	}
	if res.Answers[2].EarnedPoints != -1.5 {
		t.Errorf("absent multi select earned %v, want -1.5", res.Answers[2].EarnedPoints)
	}
	if res.Answers[3].EarnedPoints != 0 {
		t.Errorf("absent short answer earned %v, want 0", res.Answers[3].EarnedPoints)
	}
}

func TestPercentagePassedInvariant(t *testing.T) {
	exam := testExam(model.ExamSettings{PassingScore: 68.75})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)
	answerAllCorrect(t, e, questions)

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	// 11 of 16 = 68.75%, equal to threshold → passes.
	if res.Percentage != 68.75 {
		t.Errorf("percentage = %v, want 68.75", res.Percentage)
	}
	if !res.Passed {
		t.Error("percentage equal to threshold must pass")
	}
}

func TestTickCountdownAndExpiry(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	exam.DurationMinutes = 1
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	for i := 0; i < 59; i++ {
		remaining, expired := e.Tick()
		if expired {
			t.Fatalf("expired early at tick %d (remaining %d)", i+1, remaining)
		}
	}
	remaining, expired := e.Tick()
	if !expired || remaining != 0 {
		t.Fatalf("tick 60: remaining=%d expired=%v, want 0/true", remaining, expired)
	}

	if err := e.Record(questions[0].ID, model.Answer{Choice: intp(1)}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("Record after expiry = %v, want ErrAttemptClosed", err)
	}

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit after expiry error: %v", err)
	}
	if res.TimeSpentSeconds != 60 {
		t.Errorf("time spent = %d, want 60", res.TimeSpentSeconds)
	}
}

func TestTabSwitchWarnThreshold(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	for i := 1; i <= 2; i++ {
		count, warn := e.RecordTabSwitch()
		if count != i || warn {
			t.Errorf("switch %d: count=%d warn=%v, want count=%d warn=false", i, count, warn, i)
		}
	}
	count, warn := e.RecordTabSwitch()
	if count != 3 || !warn {
		t.Errorf("switch 3: count=%d warn=%v, want 3/true", count, warn)
	}
}

func TestTabSwitchNeverBlocksSubmission(t *testing.T) {
	exam := testExam(model.ExamSettings{PassingScore: 0})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)
	answerAllCorrect(t, e, questions)

	for i := 0; i < 50; i++ {
		e.RecordTabSwitch()
	}

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.TabSwitches != 50 {
		t.Errorf("tab switches = %d, want 50", res.TabSwitches)
	}
	if res.Score != 11 {
		t.Errorf("score = %v, tab switching must not alter scoring", res.Score)
	}
}

func TestCancelDiscardsAttempt(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)
	e := mustStart(t, exam, questions)

	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := e.Submit(); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("Submit after cancel = %v, want ErrAttemptClosed", err)
	}

	e2 := mustStart(t, exam, questions)
	if _, err := e2.Submit(); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := e2.Cancel(); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("Cancel after submit = %v, want ErrAttemptClosed", err)
	}
}

func TestResumeKeepsDeadlineAndIdentity(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	first := mustStart(t, exam, questions, WithClock(clock))
	startedAt := first.StartedAt()

	// Reconnect four minutes in: countdown continues, identity is stable.
	clock.advance(4 * time.Minute)
	resumed := mustStart(t, exam, questions, WithClock(clock), WithStartedAt(startedAt))

	if resumed.Remaining() != 6*60 {
		t.Errorf("remaining = %d, want %d", resumed.Remaining(), 6*60)
	}
	res1, _ := first.Submit()
	res2, _ := resumed.Submit()
	if res1.ID != res2.ID {
		t.Errorf("resumed attempt changed result ID: %s vs %s", res1.ID, res2.ID)
	}
}

func TestResumeAfterWindowCloses(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	endAt := clock.now.Add(5 * time.Minute)
	exam := testExam(model.ExamSettings{EndAt: &endAt})
	questions := testQuestions(exam.ID)

	first := mustStart(t, exam, questions, WithClock(clock))
	startedAt := first.StartedAt()

	clock.advance(11 * time.Minute)

	// A fresh attempt is rejected after the window closes.
	if _, err := Start(exam, questions, 42, nil, WithClock(clock)); !errors.Is(err, ErrExamExpired) {
		t.Errorf("fresh start = %v, want ErrExamExpired", err)
	}

	// A resume is admitted against its original start time so the attempt can
	// still be finalized.
	resumed := mustStart(t, exam, questions, WithClock(clock), WithStartedAt(startedAt))
	if resumed.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", resumed.Remaining())
	}
	if _, err := resumed.Submit(); err != nil {
		t.Errorf("Submit on resumed attempt: %v", err)
	}
}

func TestRestoreAfterDeadlineStillScores(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	startedAt := clock.now
	clock.advance(time.Duration(exam.DurationMinutes+1) * time.Minute)

	e := mustStart(t, exam, questions, WithClock(clock), WithStartedAt(startedAt))

	// Record refuses input past the deadline, but an autosaved answer from
	// before the disconnect still replays and scores.
	if err := e.Record(questions[0].ID, model.Answer{Choice: questions[0].CorrectChoice}); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("Record past deadline = %v, want ErrAttemptClosed", err)
	}
	if err := e.Restore(questions[0].ID, model.Answer{Choice: questions[0].CorrectChoice}); err != nil {
		t.Fatalf("Restore past deadline: %v", err)
	}
	if err := e.Restore(uuid.New(), model.Answer{}); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("Restore of foreign question = %v, want ErrUnknownQuestion", err)
	}

	res, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !res.Answers[0].IsCorrect || res.Answers[0].EarnedPoints != 4 {
		t.Errorf("restored answer scored %+v, want correct for 4 points", res.Answers[0])
	}

	if err := e.Restore(questions[1].ID, model.Answer{Text: strp("true")}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("Restore after submit = %v, want ErrAttemptClosed", err)
	}
}

func TestResumePastDeadline(t *testing.T) {
	exam := testExam(model.ExamSettings{})
	questions := testQuestions(exam.ID)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	startedAt := clock.now
	clock.advance(time.Duration(exam.DurationMinutes+1) * time.Minute)

	e := mustStart(t, exam, questions, WithClock(clock), WithStartedAt(startedAt))
	if e.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0 past the deadline", e.Remaining())
	}
	if e.Open() {
		t.Error("attempt past its deadline must not accept input")
	}
	if _, err := e.Submit(); err != nil {
		t.Errorf("Submit past deadline must still work, got %v", err)
	}
}
