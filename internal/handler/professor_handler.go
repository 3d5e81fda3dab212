package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/response"
)

// ProfessorHandler wires HTTP endpoints to the professor profile service.
type ProfessorHandler struct {
	service *service.ProfessorService
}

// NewProfessorHandler creates a new handler.
func NewProfessorHandler(svc *service.ProfessorService) *ProfessorHandler {
	return &ProfessorHandler{service: svc}
}

// GetProfile godoc
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *ProfessorHandler) GetProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	professor, err := h.service.GetProfile(c.Request.Context(), claims.ProfessorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor, nil)
}

// UpdateProfile godoc
// @Summary Update profile and header layout
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body service.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile [put]
func (h *ProfessorHandler) UpdateProfile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	professor, err := h.service.UpdateProfile(c.Request.Context(), claims.ProfessorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor, nil)
}

// UploadLetterhead godoc
// @Summary Upload letterhead image
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Letterhead image (png or jpeg)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile/letterhead [post]
func (h *ProfessorHandler) UploadLetterhead(c *gin.Context) {
	h.uploadImage(c, h.service.UploadLetterhead)
}

// UploadSignature godoc
// @Summary Upload signature image
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Signature image (png or jpeg)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile/signature [post]
func (h *ProfessorHandler) UploadSignature(c *gin.Context) {
	h.uploadImage(c, h.service.UploadSignature)
}

// RemoveLetterhead godoc
// @Summary Remove letterhead image
// @Tags Profile
// @Success 204 {object} response.Envelope
// @Router /profile/letterhead [delete]
func (h *ProfessorHandler) RemoveLetterhead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveLetterhead(c.Request.Context(), claims.ProfessorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveSignature godoc
// @Summary Remove signature image
// @Tags Profile
// @Success 204 {object} response.Envelope
// @Router /profile/signature [delete]
func (h *ProfessorHandler) RemoveSignature(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveSignature(c.Request.Context(), claims.ProfessorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *ProfessorHandler) uploadImage(c *gin.Context, upload func(ctx context.Context, professorID, filename string, data []byte) (*models.Professor, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read uploaded file"))
		return
	}

	professor, err := upload(c.Request.Context(), claims.ProfessorID, fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor, nil)
}
