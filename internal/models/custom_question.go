package models

import "time"

// CustomQuestion is a professor-defined intake question. Its key becomes a
// template variable; student answers land in Request.CustomFields.
type CustomQuestion struct {
	ID          string    `db:"id" json:"id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	Key         string    `db:"key" json:"key"`
	Label       string    `db:"label" json:"label"`
	Description *string   `db:"description" json:"description,omitempty"`
	Required    bool      `db:"required" json:"required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
