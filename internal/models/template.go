package models

import "time"

// Template holds raw letter content with {{variable}} placeholders. Owned by
// a professor; letters reference (not own) templates.
type Template struct {
	ID          string      `db:"id" json:"id"`
	ProfessorID string      `db:"professor_id" json:"professor_id"`
	Name        string      `db:"name" json:"name"`
	Content     string      `db:"content" json:"content"`
	Category    *string     `db:"category" json:"category,omitempty"`
	Variables   StringSlice `db:"variables" json:"variables"`
	IsDefault   bool        `db:"is_default" json:"is_default"`
	IsActive    bool        `db:"is_active" json:"is_active"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// TemplateFilter captures list query parameters.
type TemplateFilter struct {
	Search   string
	Category string
	Active   *bool
	Page     int
	PageSize int
}
