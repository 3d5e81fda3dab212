package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/mailer"
)

func (m *mockDestinationReader) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, sentAt *time.Time) error {
	for i := range m.destinations {
		if m.destinations[i].ID == id {
			m.destinations[i].Status = status
			m.destinations[i].SentAt = sentAt
			return nil
		}
	}
	return nil
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type countingObserver struct {
	sent int
}

func (c *countingObserver) RecordLetterSent() { c.sent++ }

type deliveryFixture struct {
	svc          *DeliveryService
	destinations *mockDestinationReader
	requests     *mockRequestRepo
	letters      *mockLetterRepo
	files        *stubFileStorage
	mail         *fakeMailer
	observer     *countingObserver
}

func newDeliveryFixture() *deliveryFixture {
	requests := &mockRequestRepo{requests: map[string]*models.Request{
		"req1": {
			ID:          "req1",
			ProfessorID: "prof1",
			Status:      models.RequestStatusInProgress,
			StudentName: "Jane Park",
		},
	}}
	destinations := &mockDestinationReader{destinations: []models.Destination{
		{ID: "dest1", RequestID: "req1", Institution: "MIT", Program: "Computer Science", Method: models.DeliveryMethodEmail, Status: models.DeliveryStatusPending, RecipientEmail: strptr("admissions@mit.edu")},
	}}
	professors := &mockProfessorReader{professors: map[string]*models.Professor{
		"prof1": {ID: "prof1", FullName: "Dr. Ada Lovelace"},
	}}
	letters := newMockLetterRepo()
	files := newStubFileStorage()
	mail := &fakeMailer{}
	observer := &countingObserver{}
	svc := NewDeliveryService(destinations, requests, letters, professors, files, mail, observer, zap.NewNop())
	return &deliveryFixture{
		svc:          svc,
		destinations: destinations,
		requests:     requests,
		letters:      letters,
		files:        files,
		mail:         mail,
		observer:     observer,
	}
}

// seedFinalizedLetter stores a finalized master letter with a fresh PDF.
func (f *deliveryFixture) seedFinalizedLetter(t *testing.T) {
	t.Helper()
	now := time.Now().UTC()
	pdfTime := now.Add(time.Minute)
	path := "letter.pdf"
	f.letters.letters["ltr1"] = &models.Letter{
		ID:             "ltr1",
		RequestID:      "req1",
		Content:        "final content",
		Version:        1,
		IsMaster:       true,
		IsFinalized:    true,
		PDFPath:        &path,
		PDFGeneratedAt: &pdfTime,
		UpdatedAt:      now,
	}
	f.files.saved[path] = []byte("%PDF-1.4 fake")
}

func TestSendRejectsNonEmailDestinations(t *testing.T) {
	f := newDeliveryFixture()
	f.destinations.destinations[0].Method = models.DeliveryMethodPortal

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSendBlockedWithoutLetter(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeliveryNotReady.Code, appErrors.FromError(err).Code)
}

func TestSendBlockedUntilFinalized(t *testing.T) {
	f := newDeliveryFixture()
	f.seedFinalizedLetter(t)
	f.letters.letters["ltr1"].IsFinalized = false

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeliveryNotReady.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.mail.sent)
}

func TestSendBlockedOnStalePDF(t *testing.T) {
	f := newDeliveryFixture()
	f.seedFinalizedLetter(t)
	stale := time.Now().UTC().Add(-time.Hour)
	f.letters.letters["ltr1"].PDFGeneratedAt = &stale

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeliveryNotReady.Code, appErrors.FromError(err).Code)
}

func TestSendDeliversAndCompletesRequest(t *testing.T) {
	f := newDeliveryFixture()
	f.seedFinalizedLetter(t)

	destination, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusSent, destination.Status)
	require.NotNil(t, destination.SentAt)

	require.Len(t, f.mail.sent, 1)
	msg := f.mail.sent[0]
	assert.Equal(t, "admissions@mit.edu", msg.To)
	assert.Equal(t, "Letter of Recommendation for Jane Park", msg.Subject)
	assert.NotEmpty(t, msg.Attachment)

	assert.Equal(t, 1, f.observer.sent)
	assert.Equal(t, models.RequestStatusCompleted, f.requests.requests["req1"].Status)
}

func TestSendPrefersDestinationLetter(t *testing.T) {
	f := newDeliveryFixture()
	f.seedFinalizedLetter(t)

	now := time.Now().UTC()
	pdfTime := now.Add(time.Minute)
	path := "dest_letter.pdf"
	destID := "dest1"
	f.letters.letters["ltr2"] = &models.Letter{
		ID:             "ltr2",
		RequestID:      "req1",
		DestinationID:  &destID,
		Content:        "tailored content",
		Version:        1,
		IsFinalized:    true,
		PDFPath:        &path,
		PDFGeneratedAt: &pdfTime,
		UpdatedAt:      now,
	}
	f.files.saved[path] = []byte("%PDF-1.4 tailored")

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, []byte("%PDF-1.4 tailored"), f.mail.sent[0].Attachment)
}

func TestSendMailFailureMarksDestinationFailed(t *testing.T) {
	f := newDeliveryFixture()
	f.seedFinalizedLetter(t)
	f.mail.err = errors.New("smtp unreachable")

	_, err := f.svc.Send(context.Background(), "prof1", "dest1")
	require.Error(t, err)
	assert.Equal(t, models.DeliveryStatusFailed, f.destinations.destinations[0].Status)
	assert.Equal(t, 0, f.observer.sent)
	assert.Equal(t, models.RequestStatusInProgress, f.requests.requests["req1"].Status)
}

func TestMarkSentForManualDelivery(t *testing.T) {
	f := newDeliveryFixture()
	f.destinations.destinations[0].Method = models.DeliveryMethodDownload
	f.destinations.destinations[0].RecipientEmail = nil

	destination, err := f.svc.MarkSent(context.Background(), "prof1", "dest1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusSent, destination.Status)
	require.NotNil(t, destination.SentAt)
	assert.Empty(t, f.mail.sent)
	assert.Equal(t, models.RequestStatusCompleted, f.requests.requests["req1"].Status)
}

func TestConfirmKeepsOriginalSentTime(t *testing.T) {
	f := newDeliveryFixture()
	sentAt := time.Now().UTC().Add(-time.Hour)
	f.destinations.destinations[0].Status = models.DeliveryStatusSent
	f.destinations.destinations[0].SentAt = &sentAt

	destination, err := f.svc.Confirm(context.Background(), "prof1", "dest1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusConfirmed, destination.Status)
	require.NotNil(t, destination.SentAt)
	assert.True(t, destination.SentAt.Equal(sentAt))
}

func TestResetDemotesCompletedRequest(t *testing.T) {
	f := newDeliveryFixture()
	now := time.Now().UTC()
	f.destinations.destinations[0].Status = models.DeliveryStatusSent
	f.destinations.destinations[0].SentAt = &now
	f.requests.requests["req1"].Status = models.RequestStatusCompleted

	destination, err := f.svc.Reset(context.Background(), "prof1", "dest1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusPending, destination.Status)
	assert.Nil(t, destination.SentAt)
	assert.Equal(t, models.RequestStatusInProgress, f.requests.requests["req1"].Status)
}

func TestDeliveryOwnershipHidesForeignDestinations(t *testing.T) {
	f := newDeliveryFixture()

	_, err := f.svc.Send(context.Background(), "prof2", "dest1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
