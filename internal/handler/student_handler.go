package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
)

// StudentHandler handles the student-facing lobby and result endpoints. The
// attempt itself runs over the WebSocket stream.
type StudentHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(examService *service.ExamService, attemptService *service.AttemptService) *StudentHandler {
	return &StudentHandler{examService: examService, attemptService: attemptService}
}

// Lobby godoc
// GET /api/v1/student/exams
// Lists published exams with the student's attempt status overlaid.
func (h *StudentHandler) Lobby(c *gin.Context) {
	claims := middleware.GetClaims(c)

	entries, err := h.attemptService.Lobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": entries})
}

// ExamDetail godoc
// GET /api/v1/student/exams/:exam_id
// Returns the student-facing exam payload with answer keys stripped.
func (h *StudentHandler) ExamDetail(c *gin.Context) {
	id, ok := examID(c)
	if !ok {
		return
	}

	payload, err := h.examService.GetPayload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": payload})
}

// Results godoc
// GET /api/v1/student/results
// Lists the student's results, redacting scores the exam still defers.
func (h *StudentHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.attemptService.StudentResults(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// Result godoc
// GET /api/v1/student/results/:result_id
func (h *StudentHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attemptService.StudentResult(c.Request.Context(), claims.UserID, resultID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResultNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotResultOwner):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		case errors.Is(err, service.ErrResultsDeferred):
			response.Fail(c, http.StatusForbidden, response.ErrResultsDeferred)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}
