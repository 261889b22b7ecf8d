package audit

import (
	"context"
	"strings"
	"time"

	id "landtrust/pkg/domain"
)

// EventType is the closed set of administrative audit events.
type EventType string

const (
	EventRegistrationStatusChanged EventType = "REGISTRATION_STATUS_CHANGED"
	EventSettingUpdated            EventType = "SETTING_UPDATED"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventRegistrationStatusChanged, EventSettingUpdated:
		return true
	}
	return false
}

// Subject domains prefix the identifier of the audited entity.
const (
	SubjectDomainCommoner = "COMMONER"
	SubjectDomainSetting  = "SETTING"
)

// Subject formats a subject identifier such as "COMMONER:<registration id>".
func Subject(domain, identifier string) string {
	return domain + ":" + identifier
}

// CommonerSubject is the subject of events about a registration.
func CommonerSubject(registrationID id.RegistrationID) string {
	return Subject(SubjectDomainCommoner, registrationID.String())
}

// SplitSubject returns the domain and identifier of a subject.
func SplitSubject(subject string) (string, string) {
	domain, identifier, ok := strings.Cut(subject, ":")
	if !ok {
		return "", subject
	}
	return domain, identifier
}

// AdminEvent is an append-only record of one state-changing administrative
// action. It is never mutated or deleted.
type AdminEvent struct {
	ID         id.EventID        `json:"id"`
	Subject    string            `json:"subject"`
	Type       EventType         `json:"type"`
	ActorID    id.UserID         `json:"actor_id"`
	ActorEmail string            `json:"actor_email"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store persists admin events. Append must join the caller's unit of work.
type Store interface {
	Append(ctx context.Context, event AdminEvent) error
	ListBySubject(ctx context.Context, subject string) ([]AdminEvent, error)
}
