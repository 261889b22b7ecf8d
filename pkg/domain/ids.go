// Package domain holds typed identifiers shared across bounded contexts.
//
// IDs are parsed once at the trust boundary; everything past a handler works
// with typed values so a registration id can never be passed where a user id
// is expected.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "landtrust/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	RegistrationID uuid.UUID
	AttachmentID   uuid.UUID
	EventID        uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id RegistrationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AttachmentID) String() string   { return uuid.UUID(id).String() }
func (id AttachmentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id EventID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }
func NewAttachmentID() AttachmentID     { return AttachmentID(uuid.New()) }
func NewEventID() EventID               { return EventID(uuid.New()) }

// ParseUserID parses a non-nil UUID string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseRegistrationID parses a non-nil UUID string into a RegistrationID.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration ID")
	return RegistrationID(u), err
}

// ParseAttachmentID parses a non-nil UUID string into an AttachmentID.
func ParseAttachmentID(s string) (AttachmentID, error) {
	u, err := parseUUID(s, "attachment ID")
	return AttachmentID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" required")
	}
	if !utf8.ValidString(s) || len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
