package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/response"
)

// LetterHandler wires HTTP endpoints to the letter and PDF services.
type LetterHandler struct {
	letters *service.LetterService
	pdfs    *service.PDFService
}

// NewLetterHandler creates a new handler.
func NewLetterHandler(letters *service.LetterService, pdfs *service.PDFService) *LetterHandler {
	return &LetterHandler{letters: letters, pdfs: pdfs}
}

type generateLetterPayload struct {
	TemplateID string `json:"template_id" binding:"required"`
}

// GenerateMaster godoc
// @Summary Generate the master letter from a template
// @Tags Letters
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body generateLetterPayload true "Template selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/letters/master [post]
func (h *LetterHandler) GenerateMaster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload generateLetterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "template_id is required"))
		return
	}

	letter, warnings, err := h.letters.GenerateMaster(c.Request.Context(), claims.ProfessorID, c.Param("id"), payload.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if len(warnings) > 0 {
		meta = map[string]interface{}{"unresolved_variables": warnings}
	}
	response.JSON(c, http.StatusOK, letter, nil, meta)
}

// GenerateAll godoc
// @Summary Generate master and per-destination letters
// @Tags Letters
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body generateLetterPayload true "Template selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/letters/generate-all [post]
func (h *LetterHandler) GenerateAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload generateLetterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "template_id is required"))
		return
	}

	result, err := h.letters.GenerateAllForDestinations(c.Request.Context(), claims.ProfessorID, c.Param("id"), payload.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if len(result.Warnings) > 0 {
		meta = map[string]interface{}{"unresolved_variables": result.Warnings}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// Sync godoc
// @Summary Sync master content to destination letters
// @Tags Letters
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/letters/sync [post]
func (h *LetterHandler) Sync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letters, err := h.letters.SyncMasterToDestinations(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letters, nil)
}

// ListByRequest godoc
// @Summary List every letter row for a request
// @Tags Letters
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/letters [get]
func (h *LetterHandler) ListByRequest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letters, err := h.letters.ListByRequest(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letters, nil)
}

// DeleteAll godoc
// @Summary Delete all letters for a request
// @Tags Letters
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Router /requests/{id}/letters [delete]
func (h *LetterHandler) DeleteAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.letters.DeleteAllForRequest(c.Request.Context(), claims.ProfessorID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a letter
// @Tags Letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /letters/{id} [get]
func (h *LetterHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letter, err := h.letters.Get(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}

// UpdateContent godoc
// @Summary Edit letter content
// @Tags Letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param payload body service.UpdateLetterContentRequest true "Content payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /letters/{id} [put]
func (h *LetterHandler) UpdateContent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateLetterContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid content payload"))
		return
	}

	letter, err := h.letters.UpdateContent(c.Request.Context(), claims.ProfessorID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}

// Finalize godoc
// @Summary Finalize a letter
// @Tags Letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /letters/{id}/finalize [post]
func (h *LetterHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letter, err := h.letters.Finalize(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}

// Unfinalize godoc
// @Summary Unfinalize a letter
// @Tags Letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /letters/{id}/unfinalize [post]
func (h *LetterHandler) Unfinalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letter, err := h.letters.Unfinalize(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}

// GeneratePDF godoc
// @Summary Render a letter to PDF
// @Tags Letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /letters/{id}/pdf [post]
func (h *LetterHandler) GeneratePDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	letter, err := h.pdfs.Generate(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letter, nil)
}

// DownloadPDF godoc
// @Summary Download the stored PDF
// @Tags Letters
// @Produce application/pdf
// @Param id path string true "Letter ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /letters/{id}/pdf [get]
func (h *LetterHandler) DownloadPDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, filename, err := h.pdfs.Download(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// PDFStatus godoc
// @Summary Report PDF freshness for a letter
// @Tags Letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} response.Envelope
// @Router /letters/{id}/pdf/status [get]
func (h *LetterHandler) PDFStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.pdfs.Status(c.Request.Context(), claims.ProfessorID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
