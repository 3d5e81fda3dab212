package models

import "time"

// Placeholder tokens stored in master letter content in place of concrete
// destination values. Sync replaces them verbatim per destination.
const (
	PlaceholderInstitution = "[INSTITUTION]"
	PlaceholderProgram     = "[PROGRAM]"
)

// Letter is the versioned artifact produced from a template for a request.
// DestinationID nil marks the destination-agnostic master letter. Exactly one
// row per (request, destination) pair holds the highest version and is the
// current letter; older rows are retained as history.
type Letter struct {
	ID             string     `db:"id" json:"id"`
	RequestID      string     `db:"request_id" json:"request_id"`
	DestinationID  *string    `db:"destination_id" json:"destination_id,omitempty"`
	TemplateID     *string    `db:"template_id" json:"template_id,omitempty"`
	Content        string     `db:"content" json:"content"`
	Version        int        `db:"version" json:"version"`
	IsMaster       bool       `db:"is_master" json:"is_master"`
	IsFinalized    bool       `db:"is_finalized" json:"is_finalized"`
	PDFPath        *string    `db:"pdf_path" json:"pdf_path,omitempty"`
	PDFGeneratedAt *time.Time `db:"pdf_generated_at" json:"pdf_generated_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PDFUpToDate reports whether the stored PDF still reflects the content.
// Any content change after generation makes the PDF stale.
func (l *Letter) PDFUpToDate() bool {
	if l.PDFPath == nil || l.PDFGeneratedAt == nil {
		return false
	}
	return !l.UpdatedAt.After(*l.PDFGeneratedAt)
}

// GeneratedLetters is the result of a generate-all operation.
type GeneratedLetters struct {
	Master             *Letter  `json:"master"`
	DestinationLetters []Letter `json:"destination_letters"`
	Warnings           []string `json:"warnings,omitempty"`
}

// PDFStatus reports letter PDF freshness to the UI.
type PDFStatus struct {
	LetterID       string     `json:"letter_id"`
	PDFPath        *string    `json:"pdf_path,omitempty"`
	PDFGeneratedAt *time.Time `json:"pdf_generated_at,omitempty"`
	UpToDate       bool       `json:"up_to_date"`
}
