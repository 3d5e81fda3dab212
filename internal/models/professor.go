package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HeaderField names a branding field that may appear in the letter header.
type HeaderField string

const (
	HeaderFieldTitle       HeaderField = "title"
	HeaderFieldDepartment  HeaderField = "department"
	HeaderFieldInstitution HeaderField = "institution"
	HeaderFieldAddress     HeaderField = "address"
	HeaderFieldPhone       HeaderField = "phone"
)

// HeaderLayout configures which branding fields render in the letter header
// and in what order, and whether the professor name is shown prominently.
type HeaderLayout struct {
	Fields   []HeaderField `json:"fields"`
	ShowName bool          `json:"show_name"`
}

// DefaultHeaderLayout is applied to new professor accounts.
func DefaultHeaderLayout() HeaderLayout {
	return HeaderLayout{
		Fields:   []HeaderField{HeaderFieldTitle, HeaderFieldDepartment, HeaderFieldInstitution, HeaderFieldAddress, HeaderFieldPhone},
		ShowName: true,
	}
}

// Value implements driver.Valuer.
func (h HeaderLayout) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *HeaderLayout) Scan(src interface{}) error {
	if src == nil {
		*h = DefaultHeaderLayout()
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("headerlayout: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, h)
}

// Professor represents an account holder who writes recommendation letters.
// The branding fields feed the PDF header.
type Professor struct {
	ID             string       `db:"id" json:"id"`
	Email          string       `db:"email" json:"email"`
	PasswordHash   string       `db:"password_hash" json:"-"`
	FullName       string       `db:"full_name" json:"full_name"`
	Title          *string      `db:"title" json:"title,omitempty"`
	Department     *string      `db:"department" json:"department,omitempty"`
	Institution    *string      `db:"institution" json:"institution,omitempty"`
	Address        *string      `db:"address" json:"address,omitempty"`
	Phone          *string      `db:"phone" json:"phone,omitempty"`
	LetterheadPath *string      `db:"letterhead_path" json:"letterhead_path,omitempty"`
	SignaturePath  *string      `db:"signature_path" json:"signature_path,omitempty"`
	HeaderLayout   HeaderLayout `db:"header_layout" json:"header_layout"`
	Active         bool         `db:"active" json:"active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}
