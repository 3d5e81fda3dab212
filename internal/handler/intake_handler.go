package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/response"
)

// IntakeHandler serves the public student intake flow. No JWT here; the
// access code in the path is the credential.
type IntakeHandler struct {
	service *service.RequestService
}

// NewIntakeHandler creates a new handler.
func NewIntakeHandler(svc *service.RequestService) *IntakeHandler {
	return &IntakeHandler{service: svc}
}

// View godoc
// @Summary Load the intake form for an access code
// @Tags Intake
// @Produce json
// @Param code path string true "Access code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /intake/{code} [get]
func (h *IntakeHandler) View(c *gin.Context) {
	view, err := h.service.IntakeView(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// intakeReceipt acknowledges a submitted intake form. The endpoint is
// unauthenticated, so the full request row stays out of the response.
type intakeReceipt struct {
	RequestID string               `json:"request_id"`
	Status    models.RequestStatus `json:"status"`
}

// Submit godoc
// @Summary Submit the student intake form
// @Tags Intake
// @Accept json
// @Produce json
// @Param code path string true "Access code"
// @Param payload body service.SubmitIntakeRequest true "Intake payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /intake/{code} [post]
func (h *IntakeHandler) Submit(c *gin.Context) {
	var req service.SubmitIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid intake payload"))
		return
	}

	request, err := h.service.SubmitIntake(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, intakeReceipt{RequestID: request.ID, Status: request.Status}, nil)
}
