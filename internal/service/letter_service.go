package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/interpolate"
)

type letterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Letter, error)
	FindCurrent(ctx context.Context, requestID string, destinationID *string) (*models.Letter, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Letter, error)
	Create(ctx context.Context, letter *models.Letter) error
	Update(ctx context.Context, letter *models.Letter) error
	SetFinalized(ctx context.Context, id string, finalized bool) error
	DeleteByRequest(ctx context.Context, requestID string) ([]string, error)
}

type letterRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
}

type letterDestinationReader interface {
	FindByID(ctx context.Context, id string) (*models.Destination, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Destination, error)
}

type letterTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
}

type letterVariableResolver interface {
	Resolve(ctx context.Context, requestID string, destination *models.Destination, placeholders bool) (models.LetterVariables, error)
}

// UpdateLetterContentRequest carries a manual content edit.
type UpdateLetterContentRequest struct {
	Content string `json:"content" validate:"required"`
}

// LetterService is the versioned letter store. It owns generation from
// templates, master-to-destination sync, manual edits, and the finalize lock.
type LetterService struct {
	repo         letterRepository
	requests     letterRequestRepository
	destinations letterDestinationReader
	templates    letterTemplateReader
	resolver     letterVariableResolver
	letterFiles  letterFileStorage
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewLetterService constructs a LetterService instance.
func NewLetterService(
	repo letterRepository,
	requests letterRequestRepository,
	destinations letterDestinationReader,
	templates letterTemplateReader,
	resolver letterVariableResolver,
	letterFiles letterFileStorage,
	validate *validator.Validate,
	logger *zap.Logger,
) *LetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LetterService{
		repo:         repo,
		requests:     requests,
		destinations: destinations,
		templates:    templates,
		resolver:     resolver,
		letterFiles:  letterFiles,
		validator:    validate,
		logger:       logger,
	}
}

// Get returns one letter after an ownership check.
func (s *LetterService) Get(ctx context.Context, professorID, letterID string) (*models.Letter, error) {
	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	return letter, err
}

// ListByRequest returns every letter row for a request, history included.
func (s *LetterService) ListByRequest(ctx context.Context, professorID, requestID string) ([]models.Letter, error) {
	if _, err := s.loadOwnedRequest(ctx, professorID, requestID); err != nil {
		return nil, err
	}
	letters, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list letters")
	}
	return letters, nil
}

// GenerateMaster produces the destination-agnostic master letter from a
// template, with program and institution left as placeholder tokens. Returns
// the letter and the names of any variables that resolved empty.
func (s *LetterService) GenerateMaster(ctx context.Context, professorID, requestID, templateID string) (*models.Letter, []string, error) {
	request, template, err := s.prepareGeneration(ctx, professorID, requestID, templateID)
	if err != nil {
		return nil, nil, err
	}

	vars, err := s.resolver.Resolve(ctx, requestID, nil, true)
	if err != nil {
		return nil, nil, err
	}
	content, warnings := interpolate.Apply(template.Content, vars.Map())

	letter, err := s.writeVersion(ctx, requestID, nil, content, &template.ID, true)
	if err != nil {
		return nil, nil, err
	}
	if err := s.markInProgress(ctx, request); err != nil {
		return nil, nil, err
	}
	return letter, warnings, nil
}

// GenerateAllForDestinations produces the master letter plus one letter per
// destination in a single operation. Destination letters get concrete values;
// the master keeps placeholder tokens.
func (s *LetterService) GenerateAllForDestinations(ctx context.Context, professorID, requestID, templateID string) (*models.GeneratedLetters, error) {
	request, template, err := s.prepareGeneration(ctx, professorID, requestID, templateID)
	if err != nil {
		return nil, err
	}

	destinations, err := s.destinations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destinations")
	}

	warningSet := map[string]bool{}

	masterVars, err := s.resolver.Resolve(ctx, requestID, nil, true)
	if err != nil {
		return nil, err
	}
	masterContent, warnings := interpolate.Apply(template.Content, masterVars.Map())
	for _, w := range warnings {
		warningSet[w] = true
	}
	master, err := s.writeVersion(ctx, requestID, nil, masterContent, &template.ID, true)
	if err != nil {
		return nil, err
	}

	result := &models.GeneratedLetters{Master: master}
	for i := range destinations {
		destination := destinations[i]
		vars, err := s.resolver.Resolve(ctx, requestID, &destination, false)
		if err != nil {
			return nil, err
		}
		content, warnings := interpolate.Apply(template.Content, vars.Map())
		for _, w := range warnings {
			warningSet[w] = true
		}
		letter, err := s.writeVersion(ctx, requestID, &destination.ID, content, &template.ID, false)
		if err != nil {
			return nil, err
		}
		result.DestinationLetters = append(result.DestinationLetters, *letter)
	}

	for w := range warningSet {
		result.Warnings = append(result.Warnings, w)
	}
	sort.Strings(result.Warnings)

	if err := s.markInProgress(ctx, request); err != nil {
		return nil, err
	}
	return result, nil
}

// SyncMasterToDestinations copies the current master content onto every
// destination letter, swapping placeholder tokens for each destination's
// institution and program. Finalized destination letters get a fresh version
// row; the rest are updated in place.
func (s *LetterService) SyncMasterToDestinations(ctx context.Context, professorID, requestID string) ([]models.Letter, error) {
	if _, err := s.loadOwnedRequest(ctx, professorID, requestID); err != nil {
		return nil, err
	}

	master, err := s.repo.FindCurrent(ctx, requestID, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no master letter to sync from")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load master letter")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	destinations, err := s.destinations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destinations")
	}

	synced := make([]models.Letter, 0, len(destinations))
	for i := range destinations {
		destination := destinations[i]
		content := substitutePlaceholders(master.Content, &destination, request)
		letter, err := s.writeVersion(ctx, requestID, &destination.ID, content, master.TemplateID, false)
		if err != nil {
			return nil, err
		}
		synced = append(synced, *letter)
	}
	return synced, nil
}

// UpdateContent applies a manual edit to a letter. Finalized letters reject
// edits; unfinalize first.
func (s *LetterService) UpdateContent(ctx context.Context, professorID, letterID string, req UpdateLetterContentRequest) (*models.Letter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}

	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, err
	}
	if letter.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	}

	letter.Content = req.Content
	if err := s.repo.Update(ctx, letter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update letter")
	}
	return letter, nil
}

// Finalize locks a letter against edits and regeneration-in-place.
func (s *LetterService) Finalize(ctx context.Context, professorID, letterID string) (*models.Letter, error) {
	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, err
	}
	if letter.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "letter is already finalized")
	}
	if err := s.repo.SetFinalized(ctx, letterID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize letter")
	}
	letter.IsFinalized = true
	return letter, nil
}

// Unfinalize releases the finalize lock.
func (s *LetterService) Unfinalize(ctx context.Context, professorID, letterID string) (*models.Letter, error) {
	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, err
	}
	if !letter.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "letter is not finalized")
	}
	if err := s.repo.SetFinalized(ctx, letterID, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unfinalize letter")
	}
	letter.IsFinalized = false
	return letter, nil
}

// DeleteAllForRequest removes every letter row for a request, cleans up PDF
// artifacts best-effort, and rolls an IN_PROGRESS or COMPLETED request back
// to SUBMITTED so generation can start over.
func (s *LetterService) DeleteAllForRequest(ctx context.Context, professorID, requestID string) error {
	request, err := s.loadOwnedRequest(ctx, professorID, requestID)
	if err != nil {
		return err
	}

	pdfPaths, err := s.repo.DeleteByRequest(ctx, requestID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete letters")
	}
	for _, path := range pdfPaths {
		if err := s.letterFiles.Delete(path); err != nil {
			s.logger.Warn("failed to remove letter pdf", zap.String("path", path), zap.Error(err))
		}
	}

	if request.Status == models.RequestStatusInProgress || request.Status == models.RequestStatusCompleted {
		if err := s.requests.UpdateStatus(ctx, requestID, models.RequestStatusSubmitted); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset request status")
		}
	}
	return nil
}

// writeVersion applies the versioning policy for one (request, destination)
// slot: no letter yet creates version 1; a non-finalized current letter is
// overwritten in place with its version bumped; a finalized current letter is
// preserved and a new row continues the version sequence.
func (s *LetterService) writeVersion(ctx context.Context, requestID string, destinationID *string, content string, templateID *string, isMaster bool) (*models.Letter, error) {
	current, err := s.repo.FindCurrent(ctx, requestID, destinationID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current letter")
		}
		letter := &models.Letter{
			RequestID:     requestID,
			DestinationID: destinationID,
			TemplateID:    templateID,
			Content:       content,
			Version:       1,
			IsMaster:      isMaster,
		}
		if err := s.repo.Create(ctx, letter); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create letter")
		}
		return letter, nil
	}

	if !current.IsFinalized {
		current.Content = content
		current.Version++
		current.TemplateID = templateID
		if err := s.repo.Update(ctx, current); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update letter")
		}
		return current, nil
	}

	letter := &models.Letter{
		RequestID:     requestID,
		DestinationID: destinationID,
		TemplateID:    templateID,
		Content:       content,
		Version:       current.Version + 1,
		IsMaster:      isMaster,
	}
	if err := s.repo.Create(ctx, letter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create letter")
	}
	return letter, nil
}

func (s *LetterService) prepareGeneration(ctx context.Context, professorID, requestID, templateID string) (*models.Request, *models.Template, error) {
	request, err := s.loadOwnedRequest(ctx, professorID, requestID)
	if err != nil {
		return nil, nil, err
	}
	if !request.Status.GenerationAllowed() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "letters can only be generated after the student has submitted")
	}

	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if template.ProfessorID != professorID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	if !template.IsActive {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "template is inactive")
	}
	return request, template, nil
}

func (s *LetterService) markInProgress(ctx context.Context, request *models.Request) error {
	if request.Status != models.RequestStatusSubmitted {
		return nil
	}
	if err := s.requests.UpdateStatus(ctx, request.ID, models.RequestStatusInProgress); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance request status")
	}
	request.Status = models.RequestStatusInProgress
	return nil
}

func (s *LetterService) loadOwnedRequest(ctx context.Context, professorID, requestID string) (*models.Request, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.ProfessorID != professorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return request, nil
}

func (s *LetterService) loadOwnedLetter(ctx context.Context, professorID, letterID string) (*models.Letter, *models.Request, error) {
	letter, err := s.repo.FindByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "letter not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	request, err := s.loadOwnedRequest(ctx, professorID, letter.RequestID)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "letter not found")
	}
	return letter, request, nil
}

// substitutePlaceholders swaps master placeholder tokens for a destination's
// concrete values, falling back to the request's application fields when the
// destination value is blank.
func substitutePlaceholders(content string, destination *models.Destination, request *models.Request) string {
	institution := destination.Institution
	if institution == "" && request.Institution != nil {
		institution = *request.Institution
	}
	program := destination.Program
	if program == "" && request.Program != nil {
		program = *request.Program
	}
	content = strings.ReplaceAll(content, models.PlaceholderInstitution, institution)
	content = strings.ReplaceAll(content, models.PlaceholderProgram, program)
	return content
}
