package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
	"github.com/examroom/examroom-backend/internal/validator"
)

// GradingHandler handles the teacher-facing result review and manual grading
// endpoints.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// ExamResults godoc
// GET /api/v1/teacher/exams/:exam_id/results
func (h *GradingHandler) ExamResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}
	limit, offset, page := parsePagination(c)

	results, total, err := h.gradingService.ExamResults(c.Request.Context(), claims.UserID, id, limit, offset)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, finishPagination(page, total))
}

// ExamStats godoc
// GET /api/v1/teacher/exams/:exam_id/stats
// Aggregates the exam's results: attempts, averages, pass rate, and how many
// results still need manual grading.
func (h *GradingHandler) ExamStats(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	stats, err := h.gradingService.ExamStats(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// Grade godoc
// POST /api/v1/teacher/results/:result_id/grade
// Overrides earned points on essay and short-answer items and recomputes the
// result's score, percentage, and pass flag.
func (h *GradingHandler) Grade(c *gin.Context) {
	claims := middleware.GetClaims(c)

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.gradingService.Grade(c.Request.Context(), claims.UserID, resultID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResultNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotExamOwner):
			response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
		case errors.Is(err, service.ErrAnswerNotInResult),
			errors.Is(err, service.ErrNotGradable),
			errors.Is(err, service.ErrPointsOutOfRange):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": err.Error()})
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}
