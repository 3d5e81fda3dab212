package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/interpolate"
)

type templateRepository interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, professorID string, filter models.TemplateFilter) ([]models.Template, int, error)
	Create(ctx context.Context, template *models.Template) error
	Update(ctx context.Context, template *models.Template) error
	Delete(ctx context.Context, id string) error
}

// SaveTemplateRequest carries the editable template fields for create/update.
type SaveTemplateRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=150"`
	Content   string  `json:"content" validate:"required"`
	Category  *string `json:"category" validate:"omitempty,max=100"`
	IsDefault bool    `json:"is_default"`
	IsActive  *bool   `json:"is_active"`
}

// TemplateService manages letter templates.
type TemplateService struct {
	repo      templateRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService constructs a TemplateService instance.
func NewTemplateService(repo templateRepository, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TemplateService{repo: repo, validator: validate, logger: logger}
}

// Get returns one of the professor's templates.
func (s *TemplateService) Get(ctx context.Context, professorID, templateID string) (*models.Template, error) {
	return s.loadOwned(ctx, professorID, templateID)
}

// List returns the professor's templates matching the filter.
func (s *TemplateService) List(ctx context.Context, professorID string, filter models.TemplateFilter) ([]models.Template, *models.Pagination, error) {
	templates, total, err := s.repo.List(ctx, professorID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return templates, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Create stores a new template. The referenced variable names are extracted
// from the content so authoring UIs can show them without re-parsing.
func (s *TemplateService) Create(ctx context.Context, professorID string, req SaveTemplateRequest) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	template := &models.Template{
		ProfessorID: professorID,
		Name:        req.Name,
		Content:     req.Content,
		Category:    req.Category,
		Variables:   interpolate.Tokens(req.Content),
		IsDefault:   req.IsDefault,
		IsActive:    active,
	}
	if err := s.repo.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return template, nil
}

// Update overwrites a template's mutable fields.
func (s *TemplateService) Update(ctx context.Context, professorID, templateID string, req SaveTemplateRequest) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	template, err := s.loadOwned(ctx, professorID, templateID)
	if err != nil {
		return nil, err
	}

	template.Name = req.Name
	template.Content = req.Content
	template.Category = req.Category
	template.Variables = interpolate.Tokens(req.Content)
	template.IsDefault = req.IsDefault
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return template, nil
}

// Delete removes a template. Existing letters keep their content; only the
// template reference goes away.
func (s *TemplateService) Delete(ctx context.Context, professorID, templateID string) error {
	if _, err := s.loadOwned(ctx, professorID, templateID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, templateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	return nil
}

func (s *TemplateService) loadOwned(ctx context.Context, professorID, templateID string) (*models.Template, error) {
	template, err := s.repo.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if template.ProfessorID != professorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	return template, nil
}
