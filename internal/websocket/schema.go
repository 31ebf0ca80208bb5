package websocket

import (
	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionTabSwitch Action = "tab_switch"
	ActionSubmit    Action = "submit"
	ActionCancel    Action = "cancel"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client message shape. Action selects which
// fields are meaningful.
type RequestPayload struct {
	Action     Action       `json:"action"`
	QuestionID string       `json:"question_id,omitempty"`
	Answer     model.Answer `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStarted   Event = "started"
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventWarning   Event = "warning"
	EventCompleted Event = "completed"
	EventCancelled Event = "cancelled"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StartedResponse delivers the attempt's question view and initial countdown
// right after the connection opens.
type StartedResponse struct {
	Event            Event                     `json:"event"`
	ExamID           uuid.UUID                 `json:"exam_id"`
	Questions        []session.DisplayQuestion `json:"questions"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	Resumed          bool                      `json:"resumed"`
}

// TickResponse carries the once-per-second countdown.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// SavedResponse acknowledges one captured answer.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// WarningResponse reports the tab-switch count once it crosses the advisory
// threshold.
type WarningResponse struct {
	Event       Event  `json:"event"`
	TabSwitches int    `json:"tab_switches"`
	Message     string `json:"message"`
}

// CompletedResponse closes out a submitted attempt. Result is nil when the
// exam defers score visibility.
type CompletedResponse struct {
	Event    Event         `json:"event"`
	ResultID uuid.UUID     `json:"result_id"`
	Result   *model.Result `json:"result,omitempty"`
	Expired  bool          `json:"expired"`
}

// CancelledResponse acknowledges an abandoned attempt.
type CancelledResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse reports a rejected action without closing the stream.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse answers a client keepalive.
type PongResponse struct {
	Event Event `json:"event"`
}
