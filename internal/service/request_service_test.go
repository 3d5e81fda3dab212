package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

func (m *mockRequestRepo) FindByAccessCode(ctx context.Context, code string) (*models.Request, error) {
	for _, request := range m.requests {
		if strings.EqualFold(request.AccessCode, code) {
			copy := *request
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) List(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.Request, int, error) {
	var out []models.Request
	for _, request := range m.requests {
		if request.ProfessorID == professorID {
			out = append(out, *request)
		}
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.Request) error {
	m.seq++
	request.ID = fmt.Sprintf("req%d", m.seq+100)
	copy := *request
	m.requests[request.ID] = &copy
	return nil
}

func (m *mockRequestRepo) Update(ctx context.Context, request *models.Request) error {
	copy := *request
	m.requests[request.ID] = &copy
	return nil
}

func (m *mockRequestRepo) ExistsAccessCode(ctx context.Context, code string) (bool, error) {
	if m.takenCodes[code] {
		return true, nil
	}
	for _, request := range m.requests {
		if request.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	delete(m.requests, id)
	return nil
}

func (m *mockDestinationReader) ReplaceForRequest(ctx context.Context, requestID string, destinations []models.Destination) error {
	var kept []models.Destination
	for _, destination := range m.destinations {
		if destination.RequestID != requestID {
			kept = append(kept, destination)
		}
	}
	for i, destination := range destinations {
		destination.ID = fmt.Sprintf("%s-dest%d", requestID, i+1)
		destination.RequestID = requestID
		kept = append(kept, destination)
	}
	m.destinations = kept
	return nil
}

type requestFixture struct {
	svc          *RequestService
	requests     *mockRequestRepo
	destinations *mockDestinationReader
	letters      *mockLetterRepo
	questions    *mockQuestionRepo
	files        *stubFileStorage
}

func newRequestFixture() *requestFixture {
	requests := &mockRequestRepo{requests: map[string]*models.Request{}, takenCodes: map[string]bool{}}
	destinations := &mockDestinationReader{}
	letters := newMockLetterRepo()
	questions := &mockQuestionRepo{}
	professors := &mockProfessorReader{professors: map[string]*models.Professor{
		"prof1": {ID: "prof1", FullName: "Dr. Ada Lovelace"},
	}}
	files := newStubFileStorage()
	svc := NewRequestService(requests, destinations, letters, questions, professors, files, validator.New(), zap.NewNop())
	return &requestFixture{svc: svc, requests: requests, destinations: destinations, letters: letters, questions: questions, files: files}
}

func validIntake() SubmitIntakeRequest {
	return SubmitIntakeRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
		Program:      strptr("Graduate Studies"),
		Institution:  strptr("A University"),
		Destinations: []IntakeDestination{
			{Institution: "MIT", Program: "Computer Science", Method: models.DeliveryMethodEmail, RecipientEmail: strptr("admissions@mit.edu")},
		},
	}
}

func TestCreateMintsAccessCode(t *testing.T) {
	f := newRequestFixture()

	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Len(t, request.AccessCode, accessCodeLength)
	for _, r := range request.AccessCode {
		assert.Contains(t, accessCodeAlphabet, string(r))
	}
}

func TestCreateRetriesOnAccessCodeCollision(t *testing.T) {
	f := newRequestFixture()
	// Every candidate code collides, so allocation must give up after retrying.
	taken := &alwaysTakenRepo{&mockRequestRepo{requests: map[string]*models.Request{}}}
	svc := NewRequestService(taken, f.destinations, f.letters, f.questions, &mockProfessorReader{}, f.files, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

type alwaysTakenRepo struct {
	*mockRequestRepo
}

func (r *alwaysTakenRepo) ExistsAccessCode(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestIntakeAccessCodeIsCaseInsensitive(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	view, err := f.svc.IntakeView(context.Background(), strings.ToLower(request.AccessCode))
	require.NoError(t, err)
	assert.Equal(t, request.ID, view.RequestID)
	assert.True(t, view.Editable)
	assert.Equal(t, "Dr. Ada Lovelace", view.ProfessorName)
}

func TestIntakeViewExposesOnlyFormFields(t *testing.T) {
	f := newRequestFixture()
	require.NoError(t, f.questions.Create(context.Background(), &models.CustomQuestion{
		ProfessorID: "prof1", Key: "course_taken", Label: "Course taken", Required: true,
	}))
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	intake := validIntake()
	intake.CustomFields = map[string]string{"course_taken": "CS101"}
	_, err = f.svc.SubmitIntake(context.Background(), request.AccessCode, intake)
	require.NoError(t, err)

	view, err := f.svc.IntakeView(context.Background(), request.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, strptr("Graduate Studies"), view.Program)
	assert.Equal(t, "CS101", view.CustomFields["course_taken"])
	require.Len(t, view.Questions, 1)
	assert.Equal(t, "course_taken", view.Questions[0].Key)

	payload, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "professor_id")
	assert.NotContains(t, string(payload), "access_code")
	assert.NotContains(t, string(payload), request.AccessCode)
}

func TestSubmitIntakeReplacesDestinations(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitIntake(context.Background(), request.AccessCode, validIntake())
	require.NoError(t, err)

	intake := validIntake()
	intake.Destinations = []IntakeDestination{
		{Institution: "Stanford", Program: "Electrical Engineering", Method: models.DeliveryMethodDownload},
		{Institution: "CMU", Program: "Robotics", Method: models.DeliveryMethodDownload},
	}
	updated, err := f.svc.SubmitIntake(context.Background(), request.AccessCode, intake)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusSubmitted, updated.Status)

	destinations, err := f.destinations.ListByRequest(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, destinations, 2)
	assert.Equal(t, "Stanford", destinations[0].Institution)
	assert.Equal(t, models.DeliveryStatusPending, destinations[0].Status)
}

func TestSubmitIntakeBlockedAfterLetterWorkStarts(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)
	f.requests.requests[request.ID].Status = models.RequestStatusInProgress

	_, err = f.svc.SubmitIntake(context.Background(), request.AccessCode, validIntake())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSubmitIntakeRequiresPortalURL(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	intake := validIntake()
	intake.Destinations = []IntakeDestination{
		{Institution: "MIT", Program: "Computer Science", Method: models.DeliveryMethodPortal},
	}
	_, err = f.svc.SubmitIntake(context.Background(), request.AccessCode, intake)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitIntakeEnforcesRequiredQuestions(t *testing.T) {
	f := newRequestFixture()
	require.NoError(t, f.questions.Create(context.Background(), &models.CustomQuestion{
		ProfessorID: "prof1", Key: "course_taken", Label: "Course taken", Required: true,
	}))
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitIntake(context.Background(), request.AccessCode, validIntake())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	intake := validIntake()
	intake.CustomFields = map[string]string{"course_taken": "CS101"}
	submitted, err := f.svc.SubmitIntake(context.Background(), request.AccessCode, intake)
	require.NoError(t, err)
	assert.Equal(t, "CS101", submitted.CustomFields["course_taken"])
}

func TestArchiveTwiceFails(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	_, err = f.svc.Archive(context.Background(), "prof1", request.ID)
	require.NoError(t, err)
	_, err = f.svc.Archive(context.Background(), "prof1", request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestDeleteRemovesLettersAndArtifacts(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	letter := &models.Letter{RequestID: request.ID, Content: "draft", Version: 1, IsMaster: true}
	require.NoError(t, f.letters.Create(context.Background(), letter))
	require.NoError(t, f.letters.UpdatePDF(context.Background(), letter.ID, "artifact.pdf", letter.UpdatedAt))

	require.NoError(t, f.svc.Delete(context.Background(), "prof1", request.ID))

	_, err = f.requests.FindByID(context.Background(), request.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	rows, _ := f.letters.ListByRequest(context.Background(), request.ID)
	assert.Empty(t, rows)
	assert.Contains(t, f.files.deleted, "artifact.pdf")
}

func TestRequestOwnershipHidesForeignRows(t *testing.T) {
	f := newRequestFixture()
	request, err := f.svc.Create(context.Background(), "prof1", CreateRequestRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
	})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "prof2", request.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
