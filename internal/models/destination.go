package models

import "time"

// DeliveryMethod describes how a letter reaches the destination.
type DeliveryMethod string

const (
	DeliveryMethodEmail    DeliveryMethod = "EMAIL"
	DeliveryMethodDownload DeliveryMethod = "DOWNLOAD"
	DeliveryMethodPortal   DeliveryMethod = "PORTAL"
)

// DeliveryStatus tracks per-destination submission progress.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusSent      DeliveryStatus = "SENT"
	DeliveryStatusConfirmed DeliveryStatus = "CONFIRMED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// Destination is one institution/program a request's letter must reach.
// Belongs to exactly one request; editable by the student only while the
// parent request is PENDING or SUBMITTED.
type Destination struct {
	ID             string         `db:"id" json:"id"`
	RequestID      string         `db:"request_id" json:"request_id"`
	Institution    string         `db:"institution" json:"institution"`
	Program        string         `db:"program" json:"program"`
	RecipientName  *string        `db:"recipient_name" json:"recipient_name,omitempty"`
	RecipientEmail *string        `db:"recipient_email" json:"recipient_email,omitempty"`
	PortalURL      *string        `db:"portal_url" json:"portal_url,omitempty"`
	Method         DeliveryMethod `db:"method" json:"method"`
	Status         DeliveryStatus `db:"status" json:"status"`
	Deadline       *time.Time     `db:"deadline" json:"deadline,omitempty"`
	SentAt         *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Delivered reports whether the destination counts toward request completion.
func (s DeliveryStatus) Delivered() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusConfirmed
}
