package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

const letterColumns = `id, request_id, destination_id, template_id, content, version, is_master, is_finalized, pdf_path, pdf_generated_at, created_at, updated_at`

// LetterRepository handles versioned letter persistence.
type LetterRepository struct {
	db *sqlx.DB
}

// NewLetterRepository creates a new letter repository.
func NewLetterRepository(db *sqlx.DB) *LetterRepository {
	return &LetterRepository{db: db}
}

// FindByID returns the letter with the given id.
func (r *LetterRepository) FindByID(ctx context.Context, id string) (*models.Letter, error) {
	query := fmt.Sprintf("SELECT %s FROM letters WHERE id = $1", letterColumns)
	var letter models.Letter
	if err := r.db.GetContext(ctx, &letter, query, id); err != nil {
		return nil, err
	}
	return &letter, nil
}

// FindCurrent returns the highest-version letter for a (request, destination)
// pair; destinationID nil selects the master letter. Returns sql.ErrNoRows
// when no letter exists yet.
func (r *LetterRepository) FindCurrent(ctx context.Context, requestID string, destinationID *string) (*models.Letter, error) {
	var letter models.Letter
	if destinationID == nil {
		query := fmt.Sprintf("SELECT %s FROM letters WHERE request_id = $1 AND destination_id IS NULL ORDER BY version DESC LIMIT 1", letterColumns)
		if err := r.db.GetContext(ctx, &letter, query, requestID); err != nil {
			return nil, err
		}
		return &letter, nil
	}
	query := fmt.Sprintf("SELECT %s FROM letters WHERE request_id = $1 AND destination_id = $2 ORDER BY version DESC LIMIT 1", letterColumns)
	if err := r.db.GetContext(ctx, &letter, query, requestID, *destinationID); err != nil {
		return nil, err
	}
	return &letter, nil
}

// ListByRequest returns every letter row for a request, master first, newest
// version first within each destination. History rows are included.
func (r *LetterRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Letter, error) {
	query := fmt.Sprintf("SELECT %s FROM letters WHERE request_id = $1 ORDER BY destination_id NULLS FIRST, version DESC", letterColumns)
	var letters []models.Letter
	if err := r.db.SelectContext(ctx, &letters, query, requestID); err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	return letters, nil
}

// Create inserts a new letter row.
func (r *LetterRepository) Create(ctx context.Context, letter *models.Letter) error {
	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	letter.CreatedAt = now
	letter.UpdatedAt = now
	const query = `INSERT INTO letters (id, request_id, destination_id, template_id, content, version, is_master, is_finalized, pdf_path, pdf_generated_at, created_at, updated_at)
        VALUES (:id, :request_id, :destination_id, :template_id, :content, :version, :is_master, :is_finalized, :pdf_path, :pdf_generated_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, letter); err != nil {
		return fmt.Errorf("create letter: %w", err)
	}
	return nil
}

// Update overwrites content, version and template on the same row. Used for
// in-place regeneration of non-finalized letters and for content edits.
func (r *LetterRepository) Update(ctx context.Context, letter *models.Letter) error {
	letter.UpdatedAt = time.Now().UTC()
	const query = `UPDATE letters SET content = :content, version = :version, template_id = :template_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, letter); err != nil {
		return fmt.Errorf("update letter: %w", err)
	}
	return nil
}

// SetFinalized toggles the finalize lock. The content is unchanged, so
// updated_at is left alone and a freshly rendered PDF stays fresh across
// finalize and unfinalize.
func (r *LetterRepository) SetFinalized(ctx context.Context, id string, finalized bool) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE letters SET is_finalized = $2 WHERE id = $1", id, finalized); err != nil {
		return fmt.Errorf("set letter finalized: %w", err)
	}
	return nil
}

// UpdatePDF records the rendered artifact path and generation timestamp
// without touching updated_at, so the freshness comparison stays meaningful.
func (r *LetterRepository) UpdatePDF(ctx context.Context, id, pdfPath string, generatedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE letters SET pdf_path = $2, pdf_generated_at = $3 WHERE id = $1", id, pdfPath, generatedAt); err != nil {
		return fmt.Errorf("update letter pdf: %w", err)
	}
	return nil
}

// DeleteByRequest removes every letter row for a request and returns their
// pdf paths so the caller can clean up files best-effort.
func (r *LetterRepository) DeleteByRequest(ctx context.Context, requestID string) ([]string, error) {
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, "SELECT pdf_path FROM letters WHERE request_id = $1 AND pdf_path IS NOT NULL", requestID); err != nil {
		return nil, fmt.Errorf("collect letter pdf paths: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM letters WHERE request_id = $1", requestID); err != nil {
		return nil, fmt.Errorf("delete letters: %w", err)
	}
	return paths, nil
}
