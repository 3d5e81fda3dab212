package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	"github.com/gabevillegas628/lettermanager-api/internal/service"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
)

func (s *requestStoreStub) FindByAccessCode(ctx context.Context, code string) (*models.Request, error) {
	for _, request := range s.requests {
		if strings.EqualFold(request.AccessCode, code) {
			copy := *request
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) List(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.Request, int, error) {
	var out []models.Request
	for _, request := range s.requests {
		if request.ProfessorID == professorID {
			out = append(out, *request)
		}
	}
	return out, len(out), nil
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.Request) error {
	request.ID = fmt.Sprintf("req%d", len(s.requests)+1)
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestStoreStub) Update(ctx context.Context, request *models.Request) error {
	copy := *request
	s.requests[request.ID] = &copy
	return nil
}

func (s *requestStoreStub) ExistsAccessCode(ctx context.Context, code string) (bool, error) {
	for _, request := range s.requests {
		if request.AccessCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *requestStoreStub) Delete(ctx context.Context, id string) error {
	delete(s.requests, id)
	return nil
}

func (s *destinationListStub) ReplaceForRequest(ctx context.Context, requestID string, destinations []models.Destination) error {
	var kept []models.Destination
	for _, destination := range s.destinations {
		if destination.RequestID != requestID {
			kept = append(kept, destination)
		}
	}
	for i, destination := range destinations {
		destination.ID = fmt.Sprintf("%s-dest%d", requestID, i+1)
		destination.RequestID = requestID
		kept = append(kept, destination)
	}
	s.destinations = kept
	return nil
}

type questionListStub struct {
	questions []models.CustomQuestion
}

func (s *questionListStub) ListByProfessor(ctx context.Context, professorID string) ([]models.CustomQuestion, error) {
	return s.questions, nil
}

type professorReadStub struct {
	professors map[string]*models.Professor
}

func (s *professorReadStub) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	if professor, ok := s.professors[id]; ok {
		copy := *professor
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func newIntakeHandlerFixture() (*IntakeHandler, *requestStoreStub) {
	requests := &requestStoreStub{requests: map[string]*models.Request{
		"req1": {
			ID:           "req1",
			ProfessorID:  "prof1",
			AccessCode:   "ABCDEFGHJK",
			Status:       models.RequestStatusPending,
			StudentName:  "Jane Park",
			StudentEmail: "jane@example.edu",
			CustomFields: models.JSONMap{},
		},
	}}
	professors := &professorReadStub{professors: map[string]*models.Professor{
		"prof1": {ID: "prof1", FullName: "Dr. Ada Lovelace"},
	}}
	svc := service.NewRequestService(requests, &destinationListStub{}, newLetterStoreStub(), &questionListStub{}, professors, noopFiles{}, nil, zap.NewNop())
	return NewIntakeHandler(svc), requests
}

func TestIntakeViewKeepsOwnerOutOfResponse(t *testing.T) {
	handler, _ := newIntakeHandlerFixture()

	recorder := runHandler(t, handler.View, "", gin.Param{Key: "code", Value: "abcdefghjk"}, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `"professor_name":"Dr. Ada Lovelace"`)
	assert.Contains(t, body, `"editable":true`)
	assert.NotContains(t, body, "professor_id")
	assert.NotContains(t, body, "access_code")
	assert.NotContains(t, body, "ABCDEFGHJK")
}

func TestIntakeSubmitReturnsReceiptOnly(t *testing.T) {
	handler, requests := newIntakeHandlerFixture()

	payload := service.SubmitIntakeRequest{
		StudentName:  "Jane Park",
		StudentEmail: "jane@example.edu",
		Destinations: []service.IntakeDestination{
			{Institution: "MIT", Program: "Computer Science", Method: models.DeliveryMethodDownload},
		},
	}
	recorder := runHandler(t, handler.Submit, "", gin.Param{Key: "code", Value: "ABCDEFGHJK"}, payload)

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `"request_id":"req1"`)
	assert.Contains(t, body, `"status":"SUBMITTED"`)
	assert.NotContains(t, body, "professor_id")
	assert.NotContains(t, body, "access_code")
	assert.Equal(t, models.RequestStatusSubmitted, requests.requests["req1"].Status)
}

func TestIntakeUnknownCodeEnvelope(t *testing.T) {
	handler, _ := newIntakeHandlerFixture()

	recorder := runHandler(t, handler.View, "", gin.Param{Key: "code", Value: "ZZZZZZZZZZ"}, nil)

	require.Equal(t, http.StatusNotFound, recorder.Code)
	envelope := decodeLetterEnvelope(t, recorder)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, envelope.Error.Code)
}
