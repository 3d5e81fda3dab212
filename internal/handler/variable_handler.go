package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/response"
)

// VariableHandler serves the variable catalog and custom question management.
type VariableHandler struct {
	service *service.VariableService
}

// NewVariableHandler creates a new handler.
func NewVariableHandler(svc *service.VariableService) *VariableHandler {
	return &VariableHandler{service: svc}
}

// Catalog godoc
// @Summary List template variables
// @Tags Variables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /variables [get]
func (h *VariableHandler) Catalog(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	catalog, err := h.service.Catalog(c.Request.Context(), claims.ProfessorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catalog, nil)
}

// ListQuestions godoc
// @Summary List custom intake questions
// @Tags Variables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /questions [get]
func (h *VariableHandler) ListQuestions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	questions, err := h.service.ListQuestions(c.Request.Context(), claims.ProfessorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

// CreateQuestion godoc
// @Summary Create a custom intake question
// @Tags Variables
// @Accept json
// @Produce json
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /questions [post]
func (h *VariableHandler) CreateQuestion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}

	question, err := h.service.CreateQuestion(c.Request.Context(), claims.ProfessorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// DeleteQuestion godoc
// @Summary Delete a custom intake question
// @Tags Variables
// @Param id path string true "Question ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id} [delete]
func (h *VariableHandler) DeleteQuestion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteQuestion(c.Request.Context(), claims.ProfessorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
