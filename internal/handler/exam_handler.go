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

// ExamHandler handles the teacher-facing exam authoring endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// failExamError maps exam service errors onto response codes.
func failExamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotExamOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotExamOwner)
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrExamNotDraft)
	case errors.Is(err, service.ErrExamEmpty):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidRequest):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": err.Error()})
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// examID parses the exam_id path parameter.
func examID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// POST /api/v1/teacher/exams
func (h *ExamHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// List godoc
// GET /api/v1/teacher/exams
func (h *ExamHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	limit, offset, page := parsePagination(c)

	exams, total, err := h.examService.List(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, finishPagination(page, total))
}

// Get godoc
// GET /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Update godoc
// PATCH /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Update(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Delete godoc
// DELETE /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Questions godoc
// GET /api/v1/teacher/exams/:exam_id/questions
// Returns the question set with answer keys, for the owning teacher.
func (h *ExamHandler) Questions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	questions, err := h.examService.Questions(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/exams/:exam_id/questions
// Replaces the draft exam's full question set.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.examService.ReplaceQuestions(c.Request.Context(), claims.UserID, id, &req)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Publish godoc
// POST /api/v1/teacher/exams/:exam_id/publish
func (h *ExamHandler) Publish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// Archive godoc
// POST /api/v1/teacher/exams/:exam_id/archive
func (h *ExamHandler) Archive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := examID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Archive(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failExamError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
