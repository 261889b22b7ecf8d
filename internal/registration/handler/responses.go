package handler

import (
	"time"

	"landtrust/internal/registration/models"
)

type SubmitResponse struct {
	ID string `json:"id"`
}

// MineResponse wraps the caller's registration; Registration is null when
// none exists.
type MineResponse struct {
	Registration *RegistrationResponse `json:"reg"`
}

type RegistrationResponse struct {
	ID                    string               `json:"id"`
	UserID                string               `json:"userId"`
	Status                string               `json:"status"`
	FirstName             string               `json:"firstName"`
	LastName              string               `json:"lastName"`
	Email                 string               `json:"email"`
	Phone                 string               `json:"phone"`
	DateOfBirth           *time.Time           `json:"dob"`
	Address               string               `json:"address"`
	Ancestry              string               `json:"ancestry"`
	AgreedToTerms         bool                 `json:"agreedToTerms"`
	Signature             string               `json:"signature"`
	SignDate              *time.Time           `json:"signDate"`
	HasExistingProperty   bool                 `json:"hasExistingProperty"`
	ExistingLotNumber     string               `json:"existingLotNumber"`
	ExistingPropertyNotes string               `json:"existingPropertyNotes"`
	DecidedAt             *time.Time           `json:"decidedAt"`
	DecidedBy             string               `json:"decidedBy"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
	Attachments           []AttachmentResponse `json:"attachments,omitempty"`
}

type AttachmentResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Label       string    `json:"label"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ListResponse struct {
	Items      []*RegistrationResponse `json:"items"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

type EventResponse struct {
	Type       string            `json:"type"`
	ActorEmail string            `json:"actorEmail"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type DetailResponse struct {
	Registration *RegistrationResponse `json:"reg"`
	Checklist    models.Checklist      `json:"checklist"`
	Events       []EventResponse       `json:"events"`
}

func toRegistrationResponse(reg *models.Registration) *RegistrationResponse {
	if reg == nil {
		return nil
	}
	resp := &RegistrationResponse{
		ID:                    reg.ID.String(),
		UserID:                reg.UserID.String(),
		Status:                string(reg.Status),
		FirstName:             reg.FirstName,
		LastName:              reg.LastName,
		Email:                 reg.Email,
		Phone:                 reg.Phone,
		DateOfBirth:           reg.DateOfBirth,
		Address:               reg.Address,
		Ancestry:              reg.Ancestry,
		AgreedToTerms:         reg.AgreedToTerms,
		Signature:             reg.Signature,
		SignDate:              reg.SignDate,
		HasExistingProperty:   reg.HasExistingProperty,
		ExistingLotNumber:     reg.ExistingLotNumber,
		ExistingPropertyNotes: reg.ExistingPropertyNotes,
		DecidedAt:             reg.DecidedAt,
		DecidedBy:             reg.DecidedBy,
		CreatedAt:             reg.CreatedAt,
		UpdatedAt:             reg.UpdatedAt,
	}
	for _, a := range reg.Attachments {
		resp.Attachments = append(resp.Attachments, toAttachmentResponse(a))
	}
	return resp
}

func toAttachmentResponse(a models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID.String(),
		Kind:        string(a.Kind),
		URL:         a.URL,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		Label:       a.Label,
		CreatedAt:   a.CreatedAt,
	}
}

func toDetailResponse(d *models.Detail) DetailResponse {
	resp := DetailResponse{
		Registration: toRegistrationResponse(d.Registration),
		Checklist:    d.Checklist,
		Events:       make([]EventResponse, 0, len(d.Events)),
	}
	for _, e := range d.Events {
		resp.Events = append(resp.Events, EventResponse{
			Type:       e.Type,
			ActorEmail: e.ActorEmail,
			Message:    e.Message,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	return resp
}
