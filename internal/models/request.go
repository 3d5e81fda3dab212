package models

import "time"

// RequestStatus tracks the lifecycle of a recommendation request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusSubmitted  RequestStatus = "SUBMITTED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusArchived   RequestStatus = "ARCHIVED"
)

// StudentEditable reports whether the student intake form may still modify
// the request and its destinations.
func (s RequestStatus) StudentEditable() bool {
	return s == RequestStatusPending || s == RequestStatusSubmitted
}

// GenerationAllowed reports whether letters may be generated for the request.
func (s RequestStatus) GenerationAllowed() bool {
	return s == RequestStatusSubmitted || s == RequestStatusInProgress
}

// Request is one student intake owned by a professor. The access code gates
// the public intake endpoints; matching is case-insensitive.
type Request struct {
	ID          string        `db:"id" json:"id"`
	ProfessorID string        `db:"professor_id" json:"professor_id"`
	AccessCode  string        `db:"access_code" json:"access_code"`
	Status      RequestStatus `db:"status" json:"status"`

	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	StudentPhone *string `db:"student_phone" json:"student_phone,omitempty"`

	// Application fallbacks used when a destination lacks its own values.
	Program     *string `db:"program" json:"program,omitempty"`
	Institution *string `db:"institution" json:"institution,omitempty"`

	Major          *string `db:"major" json:"major,omitempty"`
	GPA            *string `db:"gpa" json:"gpa,omitempty"`
	GraduationYear *string `db:"graduation_year" json:"graduation_year,omitempty"`
	Relationship   *string `db:"relationship" json:"relationship,omitempty"`

	CustomFields JSONMap    `db:"custom_fields" json:"custom_fields"`
	Deadline     *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// RequestFilter captures list query parameters.
type RequestFilter struct {
	Search    string
	Status    RequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RequestDetail bundles a request with its destinations and current letters.
type RequestDetail struct {
	Request
	Destinations []Destination `json:"destinations"`
	Letters      []Letter      `json:"letters"`
}
