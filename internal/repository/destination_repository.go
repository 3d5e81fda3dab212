package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

const destinationColumns = `id, request_id, institution, program, recipient_name, recipient_email, portal_url, method, status, deadline, sent_at, created_at, updated_at`

// DestinationRepository handles destination persistence.
type DestinationRepository struct {
	db *sqlx.DB
}

// NewDestinationRepository creates a new destination repository.
func NewDestinationRepository(db *sqlx.DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

// FindByID returns the destination with the given id.
func (r *DestinationRepository) FindByID(ctx context.Context, id string) (*models.Destination, error) {
	query := fmt.Sprintf("SELECT %s FROM destinations WHERE id = $1", destinationColumns)
	var destination models.Destination
	if err := r.db.GetContext(ctx, &destination, query, id); err != nil {
		return nil, err
	}
	return &destination, nil
}

// ListByRequest returns all destinations belonging to a request.
func (r *DestinationRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Destination, error) {
	query := fmt.Sprintf("SELECT %s FROM destinations WHERE request_id = $1 ORDER BY created_at ASC", destinationColumns)
	var destinations []models.Destination
	if err := r.db.SelectContext(ctx, &destinations, query, requestID); err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	return destinations, nil
}

// ReplaceForRequest swaps the request's destination set in one transaction.
// Used by student submission, which always sends the complete list.
func (r *DestinationRepository) ReplaceForRequest(ctx context.Context, requestID string, destinations []models.Destination) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM destinations WHERE request_id = $1", requestID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear destinations: %w", err)
	}
	now := time.Now().UTC()
	for i := range destinations {
		destinations[i].RequestID = requestID
		if destinations[i].ID == "" {
			destinations[i].ID = uuid.NewString()
		}
		if destinations[i].Status == "" {
			destinations[i].Status = models.DeliveryStatusPending
		}
		destinations[i].CreatedAt = now
		destinations[i].UpdatedAt = now
		const query = `INSERT INTO destinations (id, request_id, institution, program, recipient_name, recipient_email, portal_url, method, status, deadline, sent_at, created_at, updated_at)
            VALUES (:id, :request_id, :institution, :program, :recipient_name, :recipient_email, :portal_url, :method, :status, :deadline, :sent_at, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, destinations[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert destination: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit destinations: %w", err)
	}
	return nil
}

// UpdateStatus records a delivery status transition.
func (r *DestinationRepository) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, sentAt *time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE destinations SET status = $2, sent_at = $3, updated_at = $4 WHERE id = $1",
		id, status, sentAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update destination status: %w", err)
	}
	return nil
}
