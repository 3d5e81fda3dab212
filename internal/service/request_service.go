package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

type requestRepository interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
	FindByAccessCode(ctx context.Context, code string) (*models.Request, error)
	List(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.Request, int, error)
	Create(ctx context.Context, request *models.Request) error
	Update(ctx context.Context, request *models.Request) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
	ExistsAccessCode(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type requestDestinationRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.Destination, error)
	ReplaceForRequest(ctx context.Context, requestID string, destinations []models.Destination) error
}

type requestLetterRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.Letter, error)
	DeleteByRequest(ctx context.Context, requestID string) ([]string, error)
}

type requestQuestionRepository interface {
	ListByProfessor(ctx context.Context, professorID string) ([]models.CustomQuestion, error)
}

type requestProfessorReader interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

type letterFileStorage interface {
	Delete(name string) error
}

// CreateRequestRequest is the professor-side payload that opens an intake.
type CreateRequestRequest struct {
	StudentName  string     `json:"student_name" validate:"required,min=2,max=150"`
	StudentEmail string     `json:"student_email" validate:"required,email"`
	Deadline     *time.Time `json:"deadline"`
}

// IntakeDestination is one destination row on the student intake form.
type IntakeDestination struct {
	Institution    string                `json:"institution" validate:"required,min=2,max=200"`
	Program        string                `json:"program" validate:"required,min=2,max=200"`
	RecipientName  *string               `json:"recipient_name" validate:"omitempty,max=150"`
	RecipientEmail *string               `json:"recipient_email" validate:"omitempty,email"`
	PortalURL      *string               `json:"portal_url" validate:"omitempty,url"`
	Method         models.DeliveryMethod `json:"method" validate:"required,oneof=EMAIL DOWNLOAD PORTAL"`
	Deadline       *time.Time            `json:"deadline"`
}

// SubmitIntakeRequest is the student submission payload, keyed by access code.
type SubmitIntakeRequest struct {
	StudentName    string              `json:"student_name" validate:"required,min=2,max=150"`
	StudentEmail   string              `json:"student_email" validate:"required,email"`
	StudentPhone   *string             `json:"student_phone" validate:"omitempty,max=40"`
	Program        *string             `json:"program" validate:"omitempty,max=200"`
	Institution    *string             `json:"institution" validate:"omitempty,max=200"`
	Major          *string             `json:"major" validate:"omitempty,max=150"`
	GPA            *string             `json:"gpa" validate:"omitempty,max=20"`
	GraduationYear *string             `json:"graduation_year" validate:"omitempty,max=10"`
	Relationship   *string             `json:"relationship" validate:"omitempty,max=300"`
	CustomFields   map[string]string   `json:"custom_fields"`
	Destinations   []IntakeDestination `json:"destinations" validate:"required,min=1,max=25,dive"`
}

// IntakeQuestion is the public projection of a custom intake question.
type IntakeQuestion struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Description *string `json:"description,omitempty"`
	Required    bool    `json:"required"`
}

// IntakeView is the public projection shown to a student opening the form.
// The endpoint is unauthenticated, so professor internals like the owner id
// and the access code itself never leave the server; only the fields the form
// prefills are exposed.
type IntakeView struct {
	RequestID     string               `json:"request_id"`
	Status        models.RequestStatus `json:"status"`
	Editable      bool                 `json:"editable"`
	ProfessorName string               `json:"professor_name"`

	StudentName    string         `json:"student_name"`
	StudentEmail   string         `json:"student_email"`
	StudentPhone   *string        `json:"student_phone,omitempty"`
	Program        *string        `json:"program,omitempty"`
	Institution    *string        `json:"institution,omitempty"`
	Major          *string        `json:"major,omitempty"`
	GPA            *string        `json:"gpa,omitempty"`
	GraduationYear *string        `json:"graduation_year,omitempty"`
	Relationship   *string        `json:"relationship,omitempty"`
	CustomFields   models.JSONMap `json:"custom_fields"`
	Deadline       *time.Time     `json:"deadline,omitempty"`

	Destinations []models.Destination `json:"destinations"`
	Questions    []IntakeQuestion     `json:"questions"`
}

// RequestService manages recommendation requests and the student intake flow.
type RequestService struct {
	repo         requestRepository
	destinations requestDestinationRepository
	letters      requestLetterRepository
	questions    requestQuestionRepository
	professors   requestProfessorReader
	letterFiles  letterFileStorage
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(
	repo requestRepository,
	destinations requestDestinationRepository,
	letters requestLetterRepository,
	questions requestQuestionRepository,
	professors requestProfessorReader,
	letterFiles letterFileStorage,
	validate *validator.Validate,
	logger *zap.Logger,
) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{
		repo:         repo,
		destinations: destinations,
		letters:      letters,
		questions:    questions,
		professors:   professors,
		letterFiles:  letterFiles,
		validator:    validate,
		logger:       logger,
	}
}

// Create opens a new request and mints its access code.
func (s *RequestService) Create(ctx context.Context, professorID string, req CreateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	code, err := s.mintAccessCode(ctx)
	if err != nil {
		return nil, err
	}

	request := &models.Request{
		ProfessorID:  professorID,
		AccessCode:   code,
		Status:       models.RequestStatusPending,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		CustomFields: models.JSONMap{},
		Deadline:     req.Deadline,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return request, nil
}

// List returns the professor's requests matching the filter.
func (s *RequestService) List(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.Request, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, professorID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a request with its destinations and letter rows.
func (s *RequestService) Get(ctx context.Context, professorID, requestID string) (*models.RequestDetail, error) {
	request, err := s.loadOwned(ctx, professorID, requestID)
	if err != nil {
		return nil, err
	}

	destinations, err := s.destinations.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destinations")
	}
	letters, err := s.letters.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letters")
	}

	return &models.RequestDetail{Request: *request, Destinations: destinations, Letters: letters}, nil
}

// Archive retires a request from the active list. Letters and files remain.
func (s *RequestService) Archive(ctx context.Context, professorID, requestID string) (*models.Request, error) {
	request, err := s.loadOwned(ctx, professorID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status == models.RequestStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is already archived")
	}
	if err := s.repo.UpdateStatus(ctx, requestID, models.RequestStatusArchived); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive request")
	}
	request.Status = models.RequestStatusArchived
	return request, nil
}

// Delete removes a request, its destinations, letters and PDF artifacts.
func (s *RequestService) Delete(ctx context.Context, professorID, requestID string) error {
	if _, err := s.loadOwned(ctx, professorID, requestID); err != nil {
		return err
	}

	pdfPaths, err := s.letters.DeleteByRequest(ctx, requestID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete letters")
	}
	if err := s.repo.Delete(ctx, requestID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}

	for _, path := range pdfPaths {
		if err := s.letterFiles.Delete(path); err != nil {
			s.logger.Warn("failed to remove letter pdf", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// IntakeView loads the public student form state for an access code.
func (s *RequestService) IntakeView(ctx context.Context, accessCode string) (*IntakeView, error) {
	request, err := s.findByCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}

	professor, err := s.professors.FindByID(ctx, request.ProfessorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	destinations, err := s.destinations.ListByRequest(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destinations")
	}
	questions, err := s.questions.ListByProfessor(ctx, request.ProfessorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}

	view := &IntakeView{
		RequestID:      request.ID,
		Status:         request.Status,
		Editable:       request.Status.StudentEditable(),
		ProfessorName:  professor.FullName,
		StudentName:    request.StudentName,
		StudentEmail:   request.StudentEmail,
		StudentPhone:   request.StudentPhone,
		Program:        request.Program,
		Institution:    request.Institution,
		Major:          request.Major,
		GPA:            request.GPA,
		GraduationYear: request.GraduationYear,
		Relationship:   request.Relationship,
		CustomFields:   request.CustomFields,
		Deadline:       request.Deadline,
		Destinations:   destinations,
	}
	for _, question := range questions {
		view.Questions = append(view.Questions, IntakeQuestion{
			Key:         question.Key,
			Label:       question.Label,
			Description: question.Description,
			Required:    question.Required,
		})
	}
	return view, nil
}

// SubmitIntake records the student's form, replacing destinations wholesale,
// and moves the request to SUBMITTED. Resubmission is allowed until letter
// work starts.
func (s *RequestService) SubmitIntake(ctx context.Context, accessCode string, req SubmitIntakeRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intake payload")
	}
	for _, destination := range req.Destinations {
		if destination.Method == models.DeliveryMethodPortal && (destination.PortalURL == nil || *destination.PortalURL == "") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "portal destinations require a portal url")
		}
	}

	request, err := s.findByCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if !request.Status.StudentEditable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request can no longer be edited by the student")
	}

	required, err := s.requiredQuestionKeys(ctx, request.ProfessorID)
	if err != nil {
		return nil, err
	}
	for _, key := range required {
		if req.CustomFields[key] == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required answer %q", key))
		}
	}

	request.StudentName = req.StudentName
	request.StudentEmail = req.StudentEmail
	request.StudentPhone = req.StudentPhone
	request.Program = req.Program
	request.Institution = req.Institution
	request.Major = req.Major
	request.GPA = req.GPA
	request.GraduationYear = req.GraduationYear
	request.Relationship = req.Relationship
	request.CustomFields = models.JSONMap{}
	for key, value := range req.CustomFields {
		request.CustomFields[key] = value
	}
	request.Status = models.RequestStatusSubmitted

	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save intake")
	}

	destinations := make([]models.Destination, 0, len(req.Destinations))
	for _, d := range req.Destinations {
		destinations = append(destinations, models.Destination{
			Institution:    d.Institution,
			Program:        d.Program,
			RecipientName:  d.RecipientName,
			RecipientEmail: d.RecipientEmail,
			PortalURL:      d.PortalURL,
			Method:         d.Method,
			Status:         models.DeliveryStatusPending,
			Deadline:       d.Deadline,
		})
	}
	if err := s.destinations.ReplaceForRequest(ctx, request.ID, destinations); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save destinations")
	}
	return request, nil
}

func (s *RequestService) requiredQuestionKeys(ctx context.Context, professorID string) ([]string, error) {
	questions, err := s.questions.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	var keys []string
	for _, question := range questions {
		if question.Required {
			keys = append(keys, question.Key)
		}
	}
	return keys, nil
}

func (s *RequestService) loadOwned(ctx context.Context, professorID, requestID string) (*models.Request, error) {
	request, err := s.repo.FindByID(ctx, requestID)
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

func (s *RequestService) findByCode(ctx context.Context, accessCode string) (*models.Request, error) {
	if accessCode == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	request, err := s.repo.FindByAccessCode(ctx, accessCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// Ambiguous glyphs are excluded so the code survives being read aloud.
const accessCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
const accessCodeLength = 10

func (s *RequestService) mintAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomAccessCode()
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access code")
		}
		taken, err := s.repo.ExistsAccessCode(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check access code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not allocate a unique access code")
}

func randomAccessCode() (string, error) {
	buf := make([]byte, accessCodeLength)
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
