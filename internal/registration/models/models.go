package models

import (
	"time"

	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
)

// Status is the lifecycle state of a registration.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether s is a decision. Decisions are final.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether moving from s to a different status is
// allowed. Only PENDING registrations can be decided.
func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

// ParseStatus validates a status received at the boundary.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid status %q", raw)
	}
	return s, nil
}

// ParseTargetStatus validates the target of a staff decision.
func ParseTargetStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsTerminal() {
		return "", dErrors.Newf(dErrors.CodeValidation, "status must be APPROVED or REJECTED, got %q", raw)
	}
	return s, nil
}

// Registration is a Commoner membership application. There is at most one
// per user.
type Registration struct {
	ID                    id.RegistrationID
	UserID                id.UserID
	Status                Status
	FirstName             string
	LastName              string
	Email                 string
	Phone                 string
	DateOfBirth           *time.Time
	Address               string
	Ancestry              string
	AgreedToTerms         bool
	Signature             string
	SignDate              *time.Time
	HasExistingProperty   bool
	ExistingLotNumber     string
	ExistingPropertyNotes string
	DecidedAt             *time.Time
	DecidedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// Attachments is populated by reads that ask for it, newest first.
	Attachments []Attachment
}

// Attachment is an immutable reference to an uploaded document.
type Attachment struct {
	ID             id.AttachmentID
	RegistrationID id.RegistrationID
	Kind           Kind
	URL            string
	ContentType    string
	SizeBytes      int64
	Label          string
	CreatedAt      time.Time
}

// ExistingProperty holds the fields an approved member may update about land
// they already hold.
type ExistingProperty struct {
	HasExistingProperty   bool
	ExistingLotNumber     string
	ExistingPropertyNotes string
}

// Detail is the staff review view of one registration.
type Detail struct {
	Registration *Registration
	Checklist    Checklist
	Events       []Event
}

// Event is the review-facing projection of an admin event.
type Event struct {
	Type       string
	ActorEmail string
	Message    string
	Metadata   map[string]string
	CreatedAt  time.Time
}
