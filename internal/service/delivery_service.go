package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/mailer"
)

type deliveryDestinationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Destination, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Destination, error)
	UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, sentAt *time.Time) error
}

type deliveryLetterReader interface {
	FindCurrent(ctx context.Context, requestID string, destinationID *string) (*models.Letter, error)
}

type deliveryPDFReader interface {
	Read(name string) ([]byte, error)
}

type deliveryObserver interface {
	RecordLetterSent()
}

// DeliveryService tracks per-destination submission progress and performs
// email delivery of finalized letters.
type DeliveryService struct {
	destinations deliveryDestinationRepository
	requests     letterRequestRepository
	letters      deliveryLetterReader
	professors   variableProfessorReader
	files        deliveryPDFReader
	mail         mailer.Mailer
	metrics      deliveryObserver
	logger       *zap.Logger
}

// NewDeliveryService constructs a DeliveryService instance.
func NewDeliveryService(
	destinations deliveryDestinationRepository,
	requests letterRequestRepository,
	letters deliveryLetterReader,
	professors variableProfessorReader,
	files deliveryPDFReader,
	mail mailer.Mailer,
	metrics deliveryObserver,
	logger *zap.Logger,
) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{
		destinations: destinations,
		requests:     requests,
		letters:      letters,
		professors:   professors,
		files:        files,
		mail:         mail,
		metrics:      metrics,
		logger:       logger,
	}
}

// Send delivers the letter for an EMAIL destination. The letter must be
// finalized and its PDF fresh before anything leaves the building; mail
// failures mark the destination FAILED and surface the error.
func (s *DeliveryService) Send(ctx context.Context, professorID, destinationID string) (*models.Destination, error) {
	destination, request, err := s.loadOwnedDestination(ctx, professorID, destinationID)
	if err != nil {
		return nil, err
	}
	if destination.Method != models.DeliveryMethodEmail {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only email destinations can be sent directly; use mark-sent for the rest")
	}
	if destination.RecipientEmail == nil || *destination.RecipientEmail == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination has no recipient email")
	}

	letter, err := s.deliverableLetter(ctx, request.ID, destinationID)
	if err != nil {
		return nil, err
	}

	pdf, err := s.files.Read(*letter.PDFPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read pdf")
	}

	professor, err := s.professors.FindByID(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	msg := mailer.Message{
		To:      *destination.RecipientEmail,
		Subject: fmt.Sprintf("Letter of Recommendation for %s", request.StudentName),
		Body: fmt.Sprintf("Please find attached a letter of recommendation for %s, submitted by %s.\r\n",
			request.StudentName, professor.FullName),
		AttachmentName: fmt.Sprintf("recommendation_%s.pdf", request.StudentName),
		Attachment:     pdf,
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		if updateErr := s.destinations.UpdateStatus(ctx, destinationID, models.DeliveryStatusFailed, nil); updateErr != nil {
			s.logger.Error("failed to record delivery failure", zap.Error(updateErr))
		}
		destination.Status = models.DeliveryStatusFailed
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "email delivery failed")
	}

	now := time.Now().UTC()
	if err := s.destinations.UpdateStatus(ctx, destinationID, models.DeliveryStatusSent, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record delivery")
	}
	destination.Status = models.DeliveryStatusSent
	destination.SentAt = &now

	if s.metrics != nil {
		s.metrics.RecordLetterSent()
	}
	s.recomputeRequestStatus(ctx, request)
	return destination, nil
}

// MarkSent records a manual delivery (download or portal upload done outside
// the system).
func (s *DeliveryService) MarkSent(ctx context.Context, professorID, destinationID string) (*models.Destination, error) {
	return s.transition(ctx, professorID, destinationID, models.DeliveryStatusSent)
}

// Confirm records that the receiving institution acknowledged the letter.
func (s *DeliveryService) Confirm(ctx context.Context, professorID, destinationID string) (*models.Destination, error) {
	return s.transition(ctx, professorID, destinationID, models.DeliveryStatusConfirmed)
}

// Fail flags a destination whose delivery went wrong out of band.
func (s *DeliveryService) Fail(ctx context.Context, professorID, destinationID string) (*models.Destination, error) {
	return s.transition(ctx, professorID, destinationID, models.DeliveryStatusFailed)
}

// Reset returns a destination to PENDING so delivery can be retried.
func (s *DeliveryService) Reset(ctx context.Context, professorID, destinationID string) (*models.Destination, error) {
	return s.transition(ctx, professorID, destinationID, models.DeliveryStatusPending)
}

func (s *DeliveryService) transition(ctx context.Context, professorID, destinationID string, status models.DeliveryStatus) (*models.Destination, error) {
	destination, request, err := s.loadOwnedDestination(ctx, professorID, destinationID)
	if err != nil {
		return nil, err
	}

	var sentAt *time.Time
	switch status {
	case models.DeliveryStatusSent, models.DeliveryStatusConfirmed:
		if destination.SentAt != nil {
			sentAt = destination.SentAt
		} else {
			now := time.Now().UTC()
			sentAt = &now
		}
	}

	if err := s.destinations.UpdateStatus(ctx, destinationID, status, sentAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update delivery status")
	}
	destination.Status = status
	destination.SentAt = sentAt

	s.recomputeRequestStatus(ctx, request)
	return destination, nil
}

// deliverableLetter enforces the outbound gate: the destination letter (or
// the master when no destination-specific letter exists) must be finalized
// and carry a PDF generated after the last content change.
func (s *DeliveryService) deliverableLetter(ctx context.Context, requestID, destinationID string) (*models.Letter, error) {
	letter, err := s.letters.FindCurrent(ctx, requestID, &destinationID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
		}
		letter, err = s.letters.FindCurrent(ctx, requestID, nil)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrDeliveryNotReady, "no letter exists for this destination")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
		}
	}

	if !letter.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrDeliveryNotReady, "letter must be finalized before sending")
	}
	if !letter.PDFUpToDate() {
		return nil, appErrors.Clone(appErrors.ErrDeliveryNotReady, "letter pdf is missing or stale; regenerate it before sending")
	}
	return letter, nil
}

// recomputeRequestStatus promotes the request to COMPLETED once every
// destination has been delivered, and demotes a COMPLETED request back to
// IN_PROGRESS when a delivery is failed or reset. Best-effort; delivery
// status itself is already saved.
func (s *DeliveryService) recomputeRequestStatus(ctx context.Context, request *models.Request) {
	if request.Status != models.RequestStatusInProgress && request.Status != models.RequestStatusCompleted {
		return
	}

	destinations, err := s.destinations.ListByRequest(ctx, request.ID)
	if err != nil {
		s.logger.Warn("failed to recompute request status", zap.String("request_id", request.ID), zap.Error(err))
		return
	}

	allDelivered := len(destinations) > 0
	for _, destination := range destinations {
		if !destination.Status.Delivered() {
			allDelivered = false
			break
		}
	}

	var next models.RequestStatus
	switch {
	case allDelivered && request.Status == models.RequestStatusInProgress:
		next = models.RequestStatusCompleted
	case !allDelivered && request.Status == models.RequestStatusCompleted:
		next = models.RequestStatusInProgress
	default:
		return
	}

	if err := s.requests.UpdateStatus(ctx, request.ID, next); err != nil {
		s.logger.Warn("failed to update request status", zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	request.Status = next
}

func (s *DeliveryService) loadOwnedDestination(ctx context.Context, professorID, destinationID string) (*models.Destination, *models.Request, error) {
	destination, err := s.destinations.FindByID(ctx, destinationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "destination not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination")
	}
	request, err := s.requests.FindByID(ctx, destination.RequestID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.ProfessorID != professorID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "destination not found")
	}
	return destination, request, nil
}
