package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

const professorColumns = `id, email, password_hash, full_name, title, department, institution, address, phone, letterhead_path, signature_path, header_layout, active, created_at, updated_at`

// ProfessorRepository handles professor account and refresh token persistence.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository creates a new professor repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// FindByID returns the professor with the given id.
func (r *ProfessorRepository) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	query := fmt.Sprintf("SELECT %s FROM professors WHERE id = $1", professorColumns)
	var professor models.Professor
	if err := r.db.GetContext(ctx, &professor, query, id); err != nil {
		return nil, err
	}
	return &professor, nil
}

// FindByEmail returns the professor with the given email (case-insensitive).
func (r *ProfessorRepository) FindByEmail(ctx context.Context, email string) (*models.Professor, error) {
	query := fmt.Sprintf("SELECT %s FROM professors WHERE LOWER(email) = LOWER($1)", professorColumns)
	var professor models.Professor
	if err := r.db.GetContext(ctx, &professor, query, email); err != nil {
		return nil, err
	}
	return &professor, nil
}

// ExistsByEmail reports whether an account already uses the email.
func (r *ProfessorRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, "SELECT 1 FROM professors WHERE LOWER(email) = LOWER($1) LIMIT 1", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check professor email: %w", err)
	}
	return true, nil
}

// Create inserts a professor account.
func (r *ProfessorRepository) Create(ctx context.Context, professor *models.Professor) error {
	if professor.ID == "" {
		professor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	professor.CreatedAt = now
	professor.UpdatedAt = now
	const query = `INSERT INTO professors (id, email, password_hash, full_name, title, department, institution, address, phone, letterhead_path, signature_path, header_layout, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :full_name, :title, :department, :institution, :address, :phone, :letterhead_path, :signature_path, :header_layout, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, professor); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// UpdateProfile updates identity and branding text fields plus header layout.
func (r *ProfessorRepository) UpdateProfile(ctx context.Context, professor *models.Professor) error {
	professor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE professors SET full_name = :full_name, title = :title, department = :department,
        institution = :institution, address = :address, phone = :phone, header_layout = :header_layout, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, professor); err != nil {
		return fmt.Errorf("update professor profile: %w", err)
	}
	return nil
}

// UpdateLetterheadPath stores the uploaded letterhead image path.
func (r *ProfessorRepository) UpdateLetterheadPath(ctx context.Context, id string, path *string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE professors SET letterhead_path = $2, updated_at = $3 WHERE id = $1", id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("update letterhead path: %w", err)
	}
	return nil
}

// UpdateSignaturePath stores the uploaded signature image path.
func (r *ProfessorRepository) UpdateSignaturePath(ctx context.Context, id string, path *string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE professors SET signature_path = $2, updated_at = $3 WHERE id = $1", id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("update signature path: %w", err)
	}
	return nil
}

// CreateRefreshToken persists an issued refresh token.
func (r *ProfessorRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, professor_id, token, expires_at, created_at, revoked, ip_address, user_agent)
        VALUES (:id, :professor_id, :token, :expires_at, :created_at, :revoked, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken loads a refresh token by its opaque value.
func (r *ProfessorRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, professor_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1`
	var stored models.RefreshToken
	if err := r.db.GetContext(ctx, &stored, query, token); err != nil {
		return nil, err
	}
	return &stored, nil
}

// RevokeRefreshToken marks a refresh token as used/revoked.
func (r *ProfessorRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1", id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
