package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

const templateColumns = `id, professor_id, name, content, category, variables, is_default, is_active, created_at, updated_at`

// TemplateRepository handles letter template persistence.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// FindByID returns the template with the given id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM templates WHERE id = $1", templateColumns)
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// List returns a professor's templates matching the filter, with total count.
func (r *TemplateRepository) List(ctx context.Context, professorID string, filter models.TemplateFilter) ([]models.Template, int, error) {
	where := " WHERE professor_id = $1"
	args := []interface{}{professorID}
	if filter.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.Active != nil {
		where += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM templates%s ORDER BY is_default DESC, updated_at DESC LIMIT %d OFFSET %d",
		templateColumns, where, pageSize, (page-1)*pageSize)
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM templates"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}
	return templates, total, nil
}

// Create inserts a template, clearing any previous default when needed.
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if template.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE templates SET is_default = FALSE WHERE professor_id = $1", template.ProfessorID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("clear default template: %w", err)
		}
	}
	const query = `INSERT INTO templates (id, professor_id, name, content, category, variables, is_default, is_active, created_at, updated_at)
        VALUES (:id, :professor_id, :name, :content, :category, :variables, :is_default, :is_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, template); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

// Update overwrites mutable template fields.
func (r *TemplateRepository) Update(ctx context.Context, template *models.Template) error {
	template.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if template.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE templates SET is_default = FALSE WHERE professor_id = $1 AND id <> $2", template.ProfessorID, template.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("clear default template: %w", err)
		}
	}
	const query = `UPDATE templates SET name = :name, content = :content, category = :category, variables = :variables,
        is_default = :is_default, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, template); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

// Delete removes a template. Letters keep their template_id reference as a
// historical pointer (FK is ON DELETE SET NULL).
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
