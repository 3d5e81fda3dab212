package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

type professorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	UpdateProfile(ctx context.Context, professor *models.Professor) error
	UpdateLetterheadPath(ctx context.Context, id string, path *string) error
	UpdateSignaturePath(ctx context.Context, id string, path *string) error
}

type brandingStorage interface {
	Save(name string, data []byte) (string, error)
	Delete(name string) error
}

// UpdateProfileRequest carries the editable profile and branding text fields.
type UpdateProfileRequest struct {
	FullName     string               `json:"full_name" validate:"required,min=2,max=150"`
	Title        *string              `json:"title" validate:"omitempty,max=150"`
	Department   *string              `json:"department" validate:"omitempty,max=150"`
	Institution  *string              `json:"institution" validate:"omitempty,max=200"`
	Address      *string              `json:"address" validate:"omitempty,max=300"`
	Phone        *string              `json:"phone" validate:"omitempty,max=40"`
	HeaderLayout *models.HeaderLayout `json:"header_layout"`
}

// ProfessorService manages profile and letter branding assets.
type ProfessorService struct {
	repo      professorRepository
	uploads   brandingStorage
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfessorService constructs a ProfessorService instance.
func NewProfessorService(repo professorRepository, uploads brandingStorage, validate *validator.Validate, logger *zap.Logger) *ProfessorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfessorService{repo: repo, uploads: uploads, validator: validate, logger: logger}
}

// GetProfile returns the professor's own account.
func (s *ProfessorService) GetProfile(ctx context.Context, professorID string) (*models.Professor, error) {
	professor, err := s.repo.FindByID(ctx, professorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return professor, nil
}

// UpdateProfile applies profile edits, including the header layout that drives
// PDF branding.
func (s *ProfessorService) UpdateProfile(ctx context.Context, professorID string, req UpdateProfileRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if req.HeaderLayout != nil {
		if err := validateHeaderLayout(*req.HeaderLayout); err != nil {
			return nil, err
		}
	}

	professor, err := s.GetProfile(ctx, professorID)
	if err != nil {
		return nil, err
	}

	professor.FullName = req.FullName
	professor.Title = req.Title
	professor.Department = req.Department
	professor.Institution = req.Institution
	professor.Address = req.Address
	professor.Phone = req.Phone
	if req.HeaderLayout != nil {
		professor.HeaderLayout = *req.HeaderLayout
	}

	if err := s.repo.UpdateProfile(ctx, professor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return professor, nil
}

// UploadLetterhead stores a letterhead image and points the account at it.
func (s *ProfessorService) UploadLetterhead(ctx context.Context, professorID, filename string, data []byte) (*models.Professor, error) {
	return s.uploadBrandingImage(ctx, professorID, filename, data, "letterhead",
		func(p *models.Professor) *string { return p.LetterheadPath },
		s.repo.UpdateLetterheadPath,
		func(p *models.Professor, path *string) { p.LetterheadPath = path })
}

// UploadSignature stores a signature image and points the account at it.
func (s *ProfessorService) UploadSignature(ctx context.Context, professorID, filename string, data []byte) (*models.Professor, error) {
	return s.uploadBrandingImage(ctx, professorID, filename, data, "signature",
		func(p *models.Professor) *string { return p.SignaturePath },
		s.repo.UpdateSignaturePath,
		func(p *models.Professor, path *string) { p.SignaturePath = path })
}

// RemoveLetterhead clears the stored letterhead image.
func (s *ProfessorService) RemoveLetterhead(ctx context.Context, professorID string) error {
	professor, err := s.GetProfile(ctx, professorID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateLetterheadPath(ctx, professorID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear letterhead")
	}
	s.deleteBrandingFile(professor.LetterheadPath)
	return nil
}

// RemoveSignature clears the stored signature image.
func (s *ProfessorService) RemoveSignature(ctx context.Context, professorID string) error {
	professor, err := s.GetProfile(ctx, professorID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSignaturePath(ctx, professorID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear signature")
	}
	s.deleteBrandingFile(professor.SignaturePath)
	return nil
}

var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

const maxBrandingImageBytes = 5 << 20

func (s *ProfessorService) uploadBrandingImage(
	ctx context.Context,
	professorID, filename string,
	data []byte,
	kind string,
	current func(*models.Professor) *string,
	persist func(context.Context, string, *string) error,
	apply func(*models.Professor, *string),
) (*models.Professor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image must be png or jpeg")
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image file is empty")
	}
	if len(data) > maxBrandingImageBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image exceeds the 5MB limit")
	}

	professor, err := s.GetProfile(ctx, professorID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_%s%s", professorID, kind, ext)
	if _, err := s.uploads.Save(name, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	previous := current(professor)
	if err := persist(ctx, professorID, &name); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	if previous != nil && *previous != name {
		s.deleteBrandingFile(previous)
	}
	apply(professor, &name)
	return professor, nil
}

func (s *ProfessorService) deleteBrandingFile(path *string) {
	if path == nil || *path == "" {
		return
	}
	if err := s.uploads.Delete(*path); err != nil {
		s.logger.Warn("failed to remove branding file", zap.String("path", *path), zap.Error(err))
	}
}

func validateHeaderLayout(layout models.HeaderLayout) error {
	valid := map[models.HeaderField]bool{
		models.HeaderFieldTitle:       true,
		models.HeaderFieldDepartment:  true,
		models.HeaderFieldInstitution: true,
		models.HeaderFieldAddress:     true,
		models.HeaderFieldPhone:       true,
	}
	seen := map[models.HeaderField]bool{}
	for _, field := range layout.Fields {
		if !valid[field] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown header field %q", field))
		}
		if seen[field] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate header field %q", field))
		}
		seen[field] = true
	}
	return nil
}
