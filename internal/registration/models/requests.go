package models

import (
	"io"
	"strings"
	"time"

	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/email"
)

const (
	maxFieldLength     = 500
	maxTextLength      = 4000
	maxSignatureLength = 256 << 10
	maxLabelLength     = 200
)

// SubmitRequest carries the applicant's form. Every field is optional;
// absent strings are stored as "".
type SubmitRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DateOfBirth   string `json:"dob"`
	Address       string `json:"address"`
	Ancestry      string `json:"ancestry"`
	AgreedToTerms bool   `json:"agreedToTerms"`
	Signature     string `json:"signature"`
	SignDate      string `json:"signDate"`
}

func (r *SubmitRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = email.Normalize(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Address = strings.TrimSpace(r.Address)
	r.Ancestry = strings.TrimSpace(r.Ancestry)
	r.SignDate = strings.TrimSpace(r.SignDate)
}

func (r *SubmitRequest) Validate() error {
	for name, v := range map[string]string{
		"firstName": r.FirstName,
		"lastName":  r.LastName,
		"email":     r.Email,
		"phone":     r.Phone,
	} {
		if len(v) > maxFieldLength {
			return dErrors.Newf(dErrors.CodeValidation, "%s is too long", name)
		}
	}
	if len(r.Address) > maxTextLength || len(r.Ancestry) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "address and ancestry must be at most 4000 characters")
	}
	if len(r.Signature) > maxSignatureLength {
		return dErrors.New(dErrors.CodeValidation, "signature is too large")
	}
	if r.Email != "" && !email.Valid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if _, err := ParseDate("dob", r.DateOfBirth); err != nil {
		return err
	}
	if _, err := ParseDate("signDate", r.SignDate); err != nil {
		return err
	}
	return nil
}

// ApplyTo copies the submitted fields onto a new registration. Validate must
// have passed.
func (r *SubmitRequest) ApplyTo(reg *Registration) {
	reg.FirstName = r.FirstName
	reg.LastName = r.LastName
	reg.Email = r.Email
	reg.Phone = r.Phone
	reg.DateOfBirth, _ = ParseDate("dob", r.DateOfBirth)
	reg.Address = r.Address
	reg.Ancestry = r.Ancestry
	reg.AgreedToTerms = r.AgreedToTerms
	reg.Signature = r.Signature
	reg.SignDate, _ = ParseDate("signDate", r.SignDate)
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// Empty input is an absent date.
func ParseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
	}
	t = t.UTC()
	return &t, nil
}

// ExistingPropertyRequest updates land already held by an approved member.
type ExistingPropertyRequest struct {
	HasExistingProperty   bool   `json:"hasExistingProperty"`
	ExistingLotNumber     string `json:"existingLotNumber"`
	ExistingPropertyNotes string `json:"existingPropertyNotes"`
}

func (r *ExistingPropertyRequest) Normalize() {
	r.ExistingLotNumber = strings.TrimSpace(r.ExistingLotNumber)
	r.ExistingPropertyNotes = strings.TrimSpace(r.ExistingPropertyNotes)
}

func (r *ExistingPropertyRequest) Validate() error {
	if len(r.ExistingLotNumber) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "existingLotNumber is too long")
	}
	if len(r.ExistingPropertyNotes) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "existingPropertyNotes is too long")
	}
	return nil
}

func (r *ExistingPropertyRequest) ToModel() ExistingProperty {
	return ExistingProperty{
		HasExistingProperty:   r.HasExistingProperty,
		ExistingLotNumber:     r.ExistingLotNumber,
		ExistingPropertyNotes: r.ExistingPropertyNotes,
	}
}

// AddAttachmentRequest is one uploaded document.
type AddAttachmentRequest struct {
	Kind        Kind
	Label       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (r *AddAttachmentRequest) Validate() error {
	if !r.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid attachment kind %q", r.Kind)
	}
	if r.Body == nil {
		return dErrors.New(dErrors.CodeValidation, "file is required")
	}
	if r.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if len(r.Label) > maxLabelLength {
		return dErrors.New(dErrors.CodeValidation, "label is too long")
	}
	return nil
}

// TransitionRequest is the staff decision body.
type TransitionRequest struct {
	To string `json:"to"`
}
