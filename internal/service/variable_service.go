package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

type variableRequestReader interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
}

type variableProfessorReader interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

type questionRepository interface {
	ListByProfessor(ctx context.Context, professorID string) ([]models.CustomQuestion, error)
	FindByID(ctx context.Context, id string) (*models.CustomQuestion, error)
	Create(ctx context.Context, question *models.CustomQuestion) error
	Delete(ctx context.Context, id string) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

// CreateQuestionRequest defines a new professor intake question.
type CreateQuestionRequest struct {
	Key         string  `json:"key" validate:"required,min=2,max=60"`
	Label       string  `json:"label" validate:"required,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Required    bool    `json:"required"`
}

// builtinVariables is the fixed half of the catalog. Custom question keys are
// appended per professor.
var builtinVariables = []models.VariableDefinition{
	{Name: "student_name", Description: "Student's full name", Category: "student"},
	{Name: "student_email", Description: "Student's email address", Category: "student"},
	{Name: "student_phone", Description: "Student's phone number", Category: "student"},
	{Name: "program", Description: "Target program (destination value, request fallback)", Category: "application"},
	{Name: "institution", Description: "Target institution (destination value, request fallback)", Category: "application"},
	{Name: "major", Description: "Student's major", Category: "application"},
	{Name: "gpa", Description: "Student's GPA", Category: "application"},
	{Name: "graduation_year", Description: "Expected graduation year", Category: "application"},
	{Name: "relationship", Description: "How the professor knows the student", Category: "application"},
	{Name: "professor_name", Description: "Professor's full name", Category: "professor"},
	{Name: "professor_title", Description: "Professor's title", Category: "professor"},
	{Name: "professor_department", Description: "Professor's department", Category: "professor"},
	{Name: "professor_institution", Description: "Professor's institution", Category: "professor"},
	{Name: "date", Description: "Today's date, written out", Category: "general"},
}

var questionKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// VariableService resolves substitution values for letter generation and
// serves the variable catalog used by template authoring UIs.
type VariableService struct {
	requests   variableRequestReader
	professors variableProfessorReader
	questions  questionRepository
	cache      catalogCache
	cacheTTL   time.Duration
	validator  *validator.Validate
	logger     *zap.Logger

	// now is swappable in tests so the date variable is deterministic.
	now func() time.Time
}

// NewVariableService constructs a VariableService instance.
func NewVariableService(
	requests variableRequestReader,
	professors variableProfessorReader,
	questions questionRepository,
	cache catalogCache,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *VariableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &VariableService{
		requests:   requests,
		professors: professors,
		questions:  questions,
		cache:      cache,
		cacheTTL:   cacheTTL,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Resolve builds the substitution record for a request. With placeholders set,
// program and institution resolve to the literal master-letter tokens; with a
// destination they resolve to the destination's values; otherwise the request
// fallbacks apply. Given identical inputs the result is deterministic aside
// from the date.
func (s *VariableService) Resolve(ctx context.Context, requestID string, destination *models.Destination, placeholders bool) (models.LetterVariables, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LetterVariables{}, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return models.LetterVariables{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	professor, err := s.professors.FindByID(ctx, request.ProfessorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LetterVariables{}, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return models.LetterVariables{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	vars := models.LetterVariables{
		StudentName:          request.StudentName,
		StudentEmail:         request.StudentEmail,
		StudentPhone:         deref(request.StudentPhone),
		Major:                deref(request.Major),
		GPA:                  deref(request.GPA),
		GraduationYear:       deref(request.GraduationYear),
		Relationship:         deref(request.Relationship),
		ProfessorName:        professor.FullName,
		ProfessorTitle:       deref(professor.Title),
		ProfessorDepartment:  deref(professor.Department),
		ProfessorInstitution: deref(professor.Institution),
		Date:                 s.now().Format("January 2, 2006"),
		Custom:               map[string]string{},
	}
	for key, value := range request.CustomFields {
		vars.Custom[key] = value
	}

	switch {
	case placeholders:
		vars.Program = models.PlaceholderProgram
		vars.Institution = models.PlaceholderInstitution
	case destination != nil:
		vars.Program = destination.Program
		if vars.Program == "" {
			vars.Program = deref(request.Program)
		}
		vars.Institution = destination.Institution
		if vars.Institution == "" {
			vars.Institution = deref(request.Institution)
		}
	default:
		vars.Program = deref(request.Program)
		vars.Institution = deref(request.Institution)
	}

	return vars, nil
}

// Catalog returns the built-in variable definitions plus the professor's
// custom question keys. Served from Redis when possible.
func (s *VariableService) Catalog(ctx context.Context, professorID string) ([]models.VariableDefinition, error) {
	key := catalogCacheKey(professorID)
	var cached []models.VariableDefinition
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("variable catalog cache read failed", zap.Error(err))
	}

	questions, err := s.questions.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	catalog := make([]models.VariableDefinition, 0, len(builtinVariables)+len(questions))
	catalog = append(catalog, builtinVariables...)
	for _, question := range questions {
		description := question.Label
		if question.Description != nil && *question.Description != "" {
			description = *question.Description
		}
		catalog = append(catalog, models.VariableDefinition{
			Name:        question.Key,
			Description: description,
			Category:    "custom",
		})
	}

	if err := s.cache.Set(ctx, key, catalog, s.cacheTTL); err != nil {
		s.logger.Warn("variable catalog cache write failed", zap.Error(err))
	}
	return catalog, nil
}

// ListQuestions returns the professor's custom intake questions.
func (s *VariableService) ListQuestions(ctx context.Context, professorID string) ([]models.CustomQuestion, error) {
	questions, err := s.questions.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	return questions, nil
}

// CreateQuestion adds a custom intake question and invalidates the catalog.
func (s *VariableService) CreateQuestion(ctx context.Context, professorID string, req CreateQuestionRequest) (*models.CustomQuestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if !questionKeyPattern.MatchString(req.Key) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "key must be lowercase letters, digits and underscores, starting with a letter")
	}
	for _, builtin := range builtinVariables {
		if builtin.Name == req.Key {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("key %q is a built-in variable", req.Key))
		}
	}
	existing, err := s.questions.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	for _, question := range existing {
		if question.Key == req.Key {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("key %q is already defined", req.Key))
		}
	}

	question := &models.CustomQuestion{
		ProfessorID: professorID,
		Key:         req.Key,
		Label:       req.Label,
		Description: req.Description,
		Required:    req.Required,
	}
	if err := s.questions.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	s.cache.Delete(ctx, catalogCacheKey(professorID))
	return question, nil
}

// DeleteQuestion removes a custom intake question and invalidates the catalog.
// Answers already captured on requests are kept.
func (s *VariableService) DeleteQuestion(ctx context.Context, professorID, questionID string) error {
	question, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if question.ProfessorID != professorID {
		return appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	if err := s.questions.Delete(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	s.cache.Delete(ctx, catalogCacheKey(professorID))
	return nil
}

func catalogCacheKey(professorID string) string {
	return "variable_catalog:" + professorID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
