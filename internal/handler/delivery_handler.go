package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/response"
)

// DeliveryHandler wires HTTP endpoints to the delivery service.
type DeliveryHandler struct {
	service *service.DeliveryService
}

// NewDeliveryHandler creates a new handler.
func NewDeliveryHandler(svc *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: svc}
}

// Send godoc
// @Summary Email the finalized letter to a destination
// @Tags Delivery
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /destinations/{id}/send [post]
func (h *DeliveryHandler) Send(c *gin.Context) {
	h.call(c, h.service.Send)
}

// MarkSent godoc
// @Summary Mark a destination as sent manually
// @Tags Delivery
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} response.Envelope
// @Router /destinations/{id}/mark-sent [post]
func (h *DeliveryHandler) MarkSent(c *gin.Context) {
	h.call(c, h.service.MarkSent)
}

// Confirm godoc
// @Summary Confirm receipt by the institution
// @Tags Delivery
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} response.Envelope
// @Router /destinations/{id}/confirm [post]
func (h *DeliveryHandler) Confirm(c *gin.Context) {
	h.call(c, h.service.Confirm)
}

// Fail godoc
// @Summary Flag a failed delivery
// @Tags Delivery
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} response.Envelope
// @Router /destinations/{id}/fail [post]
func (h *DeliveryHandler) Fail(c *gin.Context) {
	h.call(c, h.service.Fail)
}

// Reset godoc
// @Summary Reset a destination to pending
// @Tags Delivery
// @Produce json
// @Param id path string true "Destination ID"
// @Success 200 {object} response.Envelope
// @Router /destinations/{id}/reset [post]
func (h *DeliveryHandler) Reset(c *gin.Context) {
	h.call(c, h.service.Reset)
}

func (h *DeliveryHandler) call(c *gin.Context, op func(ctx context.Context, professorID, destinationID string) (*models.Destination, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	destination, err := op(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, destination, nil)
}
