// Package session implements the exam attempt engine: it owns one student's
// single pass through one exam, from precondition checks through answer
// capture and countdown to the terminal, scored Result.
package session

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/scoring"
)

// Precondition and lifecycle errors. Precondition failures are terminal for
// the attempt; the caller returns the student to the exam catalog.
var (
	ErrAlreadyAttempted = errors.New("exam already attempted")
	ErrNotYetAvailable  = errors.New("exam is not available yet")
	ErrExamExpired      = errors.New("exam is no longer available")
	ErrAttemptClosed    = errors.New("attempt is closed")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")
	ErrNoQuestions      = errors.New("exam has no questions")
)

// Clock is the engine's time source. Injected so tests and replay tooling can
// control the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DefaultTabSwitchWarnLimit is the advisory threshold above which tab-switch
// events trigger a warning to the student.
const DefaultTabSwitchWarnLimit = 2

type engineState int

const (
	stateOpen engineState = iota
	stateSubmitted
	stateCancelled
)

// Engine runs exactly one student's attempt at one exam instance. It is not
// safe for concurrent use; each attempt owns its engine exclusively.
type Engine struct {
	exam      model.Exam
	questions []model.Question // canonical exam order
	byID      map[uuid.UUID]int
	studentID int
	clock     Clock
	warnLimit int

	order       []int               // display position → canonical question index
	optionOrder map[uuid.UUID][]int // display position → canonical option index

	answers     map[uuid.UUID]model.Answer
	startedAt   time.Time
	remaining   int // seconds
	tabSwitches int
	state       engineState
	result      *model.Result
}

type options struct {
	clock     Clock
	rng       *rand.Rand
	warnLimit int
	startedAt time.Time
}

// Option configures an Engine at construction time.
type Option func(*options)

// WithClock overrides the engine's time source.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithRand overrides the shuffle RNG, making question and option order
// deterministic for tests.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rng = r } }

// WithTabSwitchWarnLimit overrides the advisory tab-switch warning threshold.
func WithTabSwitchWarnLimit(n int) Option { return func(o *options) { o.warnLimit = n } }

// WithStartedAt resumes an attempt that started earlier (e.g. after a dropped
// connection). The countdown is seeded from the original start time, and the
// deterministic result ID stays stable across the reconnect.
func WithStartedAt(t time.Time) Option { return func(o *options) { o.startedAt = t } }

// Start validates the attempt preconditions and builds the working state for
// a new attempt: the (possibly shuffled) question order, the per-question
// option permutations, empty answer slots, and the countdown seeded from the
// exam duration.
//
// prior is the set of existing Results for this (student, exam), used only
// for the retake-policy check.
func Start(exam model.Exam, questions []model.Question, studentID int, prior []model.Result, opts ...Option) (*Engine, error) {
	o := options{
		clock:     SystemClock{},
		warnLimit: DefaultTabSwitchWarnLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.clock.Now().UnixNano()))
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := o.clock.Now()
	s := exam.Settings
	if len(prior) > 0 && !s.AllowRetakes {
		return nil, ErrAlreadyAttempted
	}
	// A resumed attempt was admitted when it first started; the availability
	// window is checked against that admission time, not the reconnect time.
	admitted := now
	if !o.startedAt.IsZero() {
		admitted = o.startedAt
	}
	if s.StartAt != nil && admitted.Before(*s.StartAt) {
		return nil, ErrNotYetAvailable
	}
	if s.EndAt != nil && admitted.After(*s.EndAt) {
		return nil, ErrExamExpired
	}

	startedAt := now
	remaining := exam.DurationMinutes * 60
	if !o.startedAt.IsZero() {
		startedAt = o.startedAt
		remaining -= int(now.Sub(startedAt).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	e := &Engine{
		exam:        exam,
		questions:   questions,
		byID:        make(map[uuid.UUID]int, len(questions)),
		studentID:   studentID,
		clock:       o.clock,
		warnLimit:   o.warnLimit,
		answers:     make(map[uuid.UUID]model.Answer, len(questions)),
		startedAt:   startedAt,
		remaining:   remaining,
		optionOrder: make(map[uuid.UUID][]int),
	}
	for i := range questions {
		e.byID[questions[i].ID] = i
	}

	e.order = identityOrder(len(questions))
	if s.ShuffleQuestions {
		e.order = permutation(o.rng, len(questions))
	}
	if s.ShuffleOptions {
		for i := range questions {
			q := &questions[i]
			if q.Type.HasOptions() && len(q.Options) > 0 {
				e.optionOrder[q.ID] = permutation(o.rng, len(q.Options))
			}
		}
	}

	return e, nil
}

// StudentID returns the acting student's identifier.
func (e *Engine) StudentID() int { return e.studentID }

// ExamID returns the exam under attempt.
func (e *Engine) ExamID() uuid.UUID { return e.exam.ID }

// ExamSettings returns the exam's behaviour settings.
func (e *Engine) ExamSettings() model.ExamSettings { return e.exam.Settings }

// StartedAt returns the attempt start time.
func (e *Engine) StartedAt() time.Time { return e.startedAt }

// Remaining returns the seconds left on the countdown.
func (e *Engine) Remaining() int { return e.remaining }

// TabSwitches returns the number of recorded tab-visibility-loss events.
func (e *Engine) TabSwitches() int { return e.tabSwitches }

// Open reports whether the attempt still accepts input.
func (e *Engine) Open() bool { return e.state == stateOpen && e.remaining > 0 }

// DisplayOption is one selectable option as shown to the student. Index is
// the option's canonical position; answers are always captured in canonical
// indices so display order never reaches the scoring path.
type DisplayOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DisplayQuestion is a question in this attempt's display order, with its
// answer key stripped.
type DisplayQuestion struct {
	ID      uuid.UUID          `json:"id"`
	Type    model.QuestionType `json:"type"`
	Prompt  string             `json:"prompt"`
	Options []DisplayOption    `json:"options,omitempty"`
	Points  float64            `json:"points"`
}

// View returns the questions in this attempt's display order, with options
// permuted per the attempt's option shuffle.
func (e *Engine) View() []DisplayQuestion {
	out := make([]DisplayQuestion, len(e.order))
	for pos, qi := range e.order {
		q := e.questions[qi]
		dq := DisplayQuestion{
			ID:     q.ID,
			Type:   q.Type,
			Prompt: q.Prompt,
			Points: q.Points,
		}
		if q.Type.HasOptions() {
			perm, shuffled := e.optionOrder[q.ID]
			dq.Options = make([]DisplayOption, len(q.Options))
			for i := range q.Options {
				canonical := i
				if shuffled {
					canonical = perm[i]
				}
				dq.Options[i] = DisplayOption{Index: canonical, Text: q.Options[canonical]}
			}
		}
		out[pos] = dq
	}
	return out
}

// Record stores or overwrites the answer slot for a question. No correctness
// validation happens here; that is deferred to submission. Overwriting an
// already-answered slot replaces the stored value.
func (e *Engine) Record(questionID uuid.UUID, ans model.Answer) error {
	if !e.Open() {
		return ErrAttemptClosed
	}
	if _, ok := e.byID[questionID]; !ok {
		return ErrUnknownQuestion
	}
	e.answers[questionID] = ans
	return nil
}

// Restore replays a previously captured answer into the attempt, e.g. from
// the autosave mirror after a reconnect. Unlike Record it is accepted after
// the deadline, so answers saved before a disconnect still score when the
// host submits the expired attempt. Submitted and cancelled attempts reject
// it.
func (e *Engine) Restore(questionID uuid.UUID, ans model.Answer) error {
	if e.state != stateOpen {
		return ErrAttemptClosed
	}
	if _, ok := e.byID[questionID]; !ok {
		return ErrUnknownQuestion
	}
	e.answers[questionID] = ans
	return nil
}

// RecordTabSwitch counts one tab-visibility-loss event. The returned warn
// flag is advisory only; it never blocks submission or alters scoring.
func (e *Engine) RecordTabSwitch() (count int, warn bool) {
	if e.state != stateOpen {
		return e.tabSwitches, false
	}
	e.tabSwitches++
	return e.tabSwitches, e.tabSwitches > e.warnLimit
}

// Tick advances the countdown by one second. It is called once per elapsed
// second by the host scheduler. When the countdown reaches zero the attempt
// stops accepting input and expired is true; the host then submits with
// whatever answers are captured.
func (e *Engine) Tick() (remaining int, expired bool) {
	if e.state != stateOpen {
		return e.remaining, false
	}
	if e.remaining > 0 {
		e.remaining--
	}
	return e.remaining, e.remaining == 0
}

// Submit scores the attempt and produces its Result. Scoring runs over the
// ORIGINAL exam order regardless of display shuffle. Submit is idempotent:
// calling it again returns the same Result, so a caller retrying after a
// transient persistence failure cannot double-count an attempt.
func (e *Engine) Submit() (*model.Result, error) {
	if e.state == stateCancelled {
		return nil, ErrAttemptClosed
	}
	if e.state == stateSubmitted {
		return e.result, nil
	}

	settings := e.exam.Settings
	records := make([]model.AnswerRecord, len(e.questions))
	var score, totalPoints float64

	for i, q := range e.questions {
		ans := e.answers[q.ID]
		outcome := scoring.Score(q, ans, settings)
		totalPoints += q.Points
		score += outcome.Earned

		records[i] = model.AnswerRecord{
			QuestionID:   q.ID,
			Prompt:       q.Prompt,
			Type:         q.Type,
			Submitted:    ans,
			CorrectText:  q.CorrectText,
			CorrectIndex: q.CorrectChoice,
			CorrectSet:   q.CorrectChoices,
			IsCorrect:    outcome.Correct,
			Points:       q.Points,
			EarnedPoints: outcome.Earned,
		}
	}

	percentage := scoring.Percentage(score, totalPoints)
	now := e.clock.Now()

	e.result = &model.Result{
		ID:               model.ResultID(e.exam.ID, e.studentID, e.startedAt),
		ExamID:           e.exam.ID,
		StudentID:        e.studentID,
		Answers:          records,
		Score:            score,
		TotalPoints:      totalPoints,
		Percentage:       percentage,
		Passed:           scoring.Passed(percentage, settings.PassingScore),
		StartedAt:        e.startedAt,
		CompletedAt:      now,
		TimeSpentSeconds: e.exam.DurationMinutes*60 - e.remaining,
		TabSwitches:      e.tabSwitches,
	}
	e.state = stateSubmitted
	return e.result, nil
}

// Cancel abandons the attempt: the countdown stops and all captured state is
// discarded without producing a Result. Cancelling a submitted attempt is an
// error.
func (e *Engine) Cancel() error {
	if e.state == stateSubmitted {
		return ErrAttemptClosed
	}
	e.state = stateCancelled
	e.answers = nil
	return nil
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// permutation returns a uniform random permutation of [0, n).
func permutation(rng *rand.Rand, n int) []int {
	return rng.Perm(n)
}
