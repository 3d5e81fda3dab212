package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
)

// CustomQuestionRepository handles professor-defined intake questions.
type CustomQuestionRepository struct {
	db *sqlx.DB
}

// NewCustomQuestionRepository creates a new custom question repository.
func NewCustomQuestionRepository(db *sqlx.DB) *CustomQuestionRepository {
	return &CustomQuestionRepository{db: db}
}

// ListByProfessor returns a professor's custom questions in creation order.
func (r *CustomQuestionRepository) ListByProfessor(ctx context.Context, professorID string) ([]models.CustomQuestion, error) {
	const query = `SELECT id, professor_id, key, label, description, required, created_at
        FROM custom_questions WHERE professor_id = $1 ORDER BY created_at ASC`
	var questions []models.CustomQuestion
	if err := r.db.SelectContext(ctx, &questions, query, professorID); err != nil {
		return nil, fmt.Errorf("list custom questions: %w", err)
	}
	return questions, nil
}

// FindByID returns the custom question with the given id.
func (r *CustomQuestionRepository) FindByID(ctx context.Context, id string) (*models.CustomQuestion, error) {
	const query = `SELECT id, professor_id, key, label, description, required, created_at
        FROM custom_questions WHERE id = $1`
	var question models.CustomQuestion
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// Create inserts a custom question.
func (r *CustomQuestionRepository) Create(ctx context.Context, question *models.CustomQuestion) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	question.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO custom_questions (id, professor_id, key, label, description, required, created_at)
        VALUES (:id, :professor_id, :key, :label, :description, :required, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create custom question: %w", err)
	}
	return nil
}

// Delete removes a custom question.
func (r *CustomQuestionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM custom_questions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete custom question: %w", err)
	}
	return nil
}
