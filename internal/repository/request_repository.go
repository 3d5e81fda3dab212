package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

const requestColumns = `id, professor_id, access_code, status, student_name, student_email, student_phone, program, institution, major, gpa, graduation_year, relationship, custom_fields, deadline, created_at, updated_at`

// RequestRepository handles recommendation request persistence.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID returns the request with the given id.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE id = $1", requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByAccessCode returns the request matching the code, case-insensitively.
func (r *RequestRepository) FindByAccessCode(ctx context.Context, code string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE LOWER(access_code) = LOWER($1)", requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, code); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests for a professor matching the filter, with total count.
func (r *RequestRepository) List(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.Request, int, error) {
	where := " WHERE professor_id = $1"
	args := []interface{}{professorID}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (student_name ILIKE $%d OR student_email ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	sortBy := "created_at"
	switch filter.SortBy {
	case "deadline", "student_name", "status", "updated_at":
		sortBy = filter.SortBy
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY %s %s LIMIT %d OFFSET %d",
		requestColumns, where, sortBy, order, pageSize, (page-1)*pageSize)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM requests" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// Create inserts a new request.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	const query = `INSERT INTO requests (id, professor_id, access_code, status, student_name, student_email, student_phone, program, institution, major, gpa, graduation_year, relationship, custom_fields, deadline, created_at, updated_at)
        VALUES (:id, :professor_id, :access_code, :status, :student_name, :student_email, :student_phone, :program, :institution, :major, :gpa, :graduation_year, :relationship, :custom_fields, :deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// Update overwrites the student-provided fields and status.
func (r *RequestRepository) Update(ctx context.Context, request *models.Request) error {
	request.UpdatedAt = time.Now().UTC()
	const query = `UPDATE requests SET status = :status, student_name = :student_name, student_email = :student_email,
        student_phone = :student_phone, program = :program, institution = :institution, major = :major, gpa = :gpa,
        graduation_year = :graduation_year, relationship = :relationship, custom_fields = :custom_fields,
        deadline = :deadline, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

// UpdateStatus advances the request lifecycle.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE requests SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

// ExistsAccessCode reports whether a code is already taken (case-insensitive).
func (r *RequestRepository) ExistsAccessCode(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, "SELECT 1 FROM requests WHERE LOWER(access_code) = LOWER($1) LIMIT 1", code)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check access code: %w", err)
	}
	return true, nil
}

// Delete removes a request; destinations and letters cascade via FK.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM requests WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}
