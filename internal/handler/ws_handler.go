package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
	"github.com/examroom/examroom-backend/internal/session"
	ws "github.com/examroom/examroom-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler hosts exam attempts over WebSocket. One connection owns one
// session engine: the server drives the countdown, the client sends answer,
// tab-switch, submit, and cancel actions.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:exam_id/attempt
// Starts (or resumes) an attempt and streams it until submission, cancel,
// expiry, or disconnect. A disconnect leaves the attempt resumable; the
// countdown keeps running against the persisted start time.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := context.Background()

	engine, resumed, err := h.attemptService.Begin(ctx, claims.UserID, examID)
	if err != nil {
		ws.WriteError(conn, beginErrorMessage(err))
		return
	}

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Bool("resumed", resumed).Msg("Attempt stream opened")

	ws.WriteTyped(conn, ws.StartedResponse{
		Event:            ws.EventStarted,
		ExamID:           examID,
		Questions:        engine.View(),
		RemainingSeconds: engine.Remaining(),
		Resumed:          resumed,
	})

	h.runAttempt(ctx, conn, wsLog, engine)
}

// beginErrorMessage maps attempt preconditions to client-facing messages.
func beginErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadyAttempted):
		return string(response.ErrAlreadyAttempted)
	case errors.Is(err, session.ErrNotYetAvailable):
		return string(response.ErrExamNotYetOpen)
	case errors.Is(err, session.ErrExamExpired):
		return string(response.ErrExamClosed)
	case errors.Is(err, session.ErrNoQuestions):
		return string(response.ErrNoQuestions)
	case errors.Is(err, service.ErrExamNotFound):
		return string(response.ErrNotFound)
	default:
		return string(response.ErrInternal)
	}
}

// runAttempt is the per-connection event loop. The engine is single-owner
// state: only this goroutine touches it, with reads funnelled in over a
// channel, so ticks and actions never race.
func (h *WSHandler) runAttempt(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, engine *session.Engine) {
	type inbound struct {
		msg ws.RequestPayload
		err error
	}
	reads := make(chan inbound)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			var msg ws.RequestPayload
			err := ws.ReadJSON(conn, &msg)
			select {
			case reads <- inbound{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			remaining, expired := engine.Tick()
			if expired {
				// Deadline hit: submit with whatever answers are captured.
				result, visible, err := h.attemptService.Complete(ctx, engine)
				if err != nil {
					wsLog.Error().Err(err).Msg("Auto-submit failed")
					ws.WriteError(conn, string(response.ErrInternal))
					return
				}
				resp := ws.CompletedResponse{Event: ws.EventCompleted, ResultID: result.ID, Expired: true}
				if visible {
					resp.Result = result
				}
				ws.WriteTyped(conn, resp)
				wsLog.Info().Str("result_id", result.ID.String()).Msg("Attempt expired and auto-submitted")
				return
			}
			ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining})

		case in := <-reads:
			if in.err != nil {
				if websocket.IsUnexpectedCloseError(in.err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(in.err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				// Attempt stays resumable; the start-time key keeps the
				// countdown honest across the gap, and the expiry sweep
				// finalizes the attempt if the student never returns.
				return
			}
			if done := h.handleAction(ctx, conn, wsLog, engine, &in.msg); done {
				return
			}
		}
	}
}

// handleAction dispatches one client action. It reports true when the
// attempt reached a terminal state and the stream should close.
func (h *WSHandler) handleAction(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, engine *session.Engine, msg *ws.RequestPayload) bool {
	switch msg.Action {
	case ws.ActionAnswer:
		questionID, err := uuid.Parse(msg.QuestionID)
		if err != nil {
			ws.WriteError(conn, "invalid question_id format")
			return false
		}
		if err := h.attemptService.SaveAnswer(ctx, engine, questionID, msg.Answer); err != nil {
			ws.WriteError(conn, saveErrorMessage(err))
			return false
		}
		ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})

	case ws.ActionTabSwitch:
		count, warn := h.attemptService.RecordCheatEvent(ctx, engine)
		if warn {
			ws.WriteTyped(conn, ws.WarningResponse{
				Event:       ws.EventWarning,
				TabSwitches: count,
				Message:     "Repeated tab switching has been recorded on this attempt.",
			})
		}

	case ws.ActionSubmit:
		result, visible, err := h.attemptService.Complete(ctx, engine)
		if err != nil {
			if errors.Is(err, session.ErrAttemptClosed) {
				ws.WriteError(conn, string(response.ErrAttemptClosed))
			} else {
				// Persistence failed; the submit is safe to retry.
				wsLog.Error().Err(err).Msg("Submit failed to persist")
				ws.WriteError(conn, string(response.ErrInternal))
			}
			return false
		}
		resp := ws.CompletedResponse{Event: ws.EventCompleted, ResultID: result.ID}
		if visible {
			resp.Result = result
		}
		ws.WriteTyped(conn, resp)
		wsLog.Info().Str("result_id", result.ID.String()).Msg("Attempt submitted")
		return true

	case ws.ActionCancel:
		if err := h.attemptService.Abandon(ctx, engine); err != nil {
			ws.WriteError(conn, string(response.ErrAttemptClosed))
			return false
		}
		ws.WriteTyped(conn, ws.CancelledResponse{Event: ws.EventCancelled})
		return true

	case ws.ActionPing:
		ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		ws.WriteError(conn, "unknown action: "+string(msg.Action))
	}
	return false
}

func saveErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrAttemptClosed):
		return string(response.ErrAttemptClosed)
	case errors.Is(err, session.ErrUnknownQuestion):
		return "question does not belong to this exam"
	default:
		return string(response.ErrInternal)
	}
}
