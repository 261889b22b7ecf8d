package models

import (
	dErrors "landtrust/pkg/domain-errors"
)

// Kind classifies an attachment.
type Kind string

const (
	KindIDProof          Kind = "ID_PROOF"
	KindBirthCertificate Kind = "BIRTH_CERTIFICATE"
	KindLineageProof     Kind = "LINEAGE_PROOF"
	KindAddressProof     Kind = "ADDRESS_PROOF"
	KindPaymentProof     Kind = "PAYMENT_PROOF"
	KindOther            Kind = "OTHER"
)

// RequiredKinds lists the documents a complete application carries, in the
// order they are presented to applicants and staff.
var RequiredKinds = []Kind{
	KindIDProof,
	KindBirthCertificate,
	KindLineageProof,
	KindAddressProof,
	KindPaymentProof,
}

func (k Kind) IsValid() bool {
	return k == KindOther || k.IsRequired()
}

func (k Kind) IsRequired() bool {
	for _, r := range RequiredKinds {
		if k == r {
			return true
		}
	}
	return false
}

func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !k.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid attachment kind %q", raw)
	}
	return k, nil
}

// Checklist reports which required document kinds are present.
type Checklist struct {
	Complete bool   `json:"complete"`
	Missing  []Kind `json:"missing"`
	Present  []Kind `json:"present"`
}

// EvaluateChecklist is complete iff every required kind appears at least
// once in kinds. Unknown and OTHER kinds are ignored; both lists follow
// RequiredKinds order.
func EvaluateChecklist(kinds []Kind) Checklist {
	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		seen[k] = true
	}
	c := Checklist{Missing: []Kind{}, Present: []Kind{}}
	for _, r := range RequiredKinds {
		if seen[r] {
			c.Present = append(c.Present, r)
		} else {
			c.Missing = append(c.Missing, r)
		}
	}
	c.Complete = len(c.Missing) == 0
	return c
}
