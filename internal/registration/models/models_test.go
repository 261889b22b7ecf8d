package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusApproved, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseTargetStatus(t *testing.T) {
	for _, raw := range []string{"PENDING", "approved", "", "DELETED"} {
		_, err := ParseTargetStatus(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), raw)
	}
	s, err := ParseTargetStatus("REJECTED")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, s)
}

func TestEvaluateChecklist(t *testing.T) {
	t.Run("empty lists every required kind as missing", func(t *testing.T) {
		c := EvaluateChecklist(nil)
		assert.False(t, c.Complete)
		assert.Equal(t, RequiredKinds, c.Missing)
		assert.Empty(t, c.Present)
	})

	t.Run("four of five reports the one missing kind", func(t *testing.T) {
		c := EvaluateChecklist([]Kind{KindPaymentProof, KindIDProof, KindAddressProof, KindLineageProof})
		assert.False(t, c.Complete)
		assert.Equal(t, []Kind{KindBirthCertificate}, c.Missing)
		assert.Equal(t, []Kind{KindIDProof, KindLineageProof, KindAddressProof, KindPaymentProof}, c.Present)
	})

	t.Run("duplicates and OTHER never change completeness", func(t *testing.T) {
		all := append([]Kind{}, RequiredKinds...)
		complete := EvaluateChecklist(all)
		assert.True(t, complete.Complete)

		withExtras := EvaluateChecklist(append(all, KindOther, KindIDProof))
		assert.Equal(t, complete, withExtras)

		partial := EvaluateChecklist([]Kind{KindIDProof, KindOther})
		assert.Equal(t, EvaluateChecklist([]Kind{KindIDProof}), partial)
	})
}

func TestParseKind(t *testing.T) {
	_, err := ParseKind("SELFIE")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	k, err := ParseKind("OTHER")
	require.NoError(t, err)
	assert.False(t, k.IsRequired())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("dob", "1990-04-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate("signDate", "2026-01-02T15:04:05+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC), *d)

	d, err = ParseDate("dob", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDate("dob", "12/04/1990")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitRequest(t *testing.T) {
	t.Run("absent fields become empty values", func(t *testing.T) {
		req := SubmitRequest{FirstName: "  Ada "}
		req.Normalize()
		require.NoError(t, req.Validate())

		var reg Registration
		req.ApplyTo(&reg)
		assert.Equal(t, "Ada", reg.FirstName)
		assert.Equal(t, "", reg.Phone)
		assert.Nil(t, reg.DateOfBirth)
		assert.Nil(t, reg.SignDate)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		req := SubmitRequest{Email: "nope"}
		req.Normalize()
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("bad date rejected", func(t *testing.T) {
		req := SubmitRequest{SignDate: "yesterday"}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})
}

func TestListFilter(t *testing.T) {
	t.Run("defaults and clamping", func(t *testing.T) {
		f, err := ParseListFilter("", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultListLimit, f.Limit)

		f, err = ParseListFilter(" ada ", "pending", "500", "")
		require.NoError(t, err)
		assert.Equal(t, MaxListLimit, f.Limit)
		assert.Equal(t, StatusPending, f.Status)
		assert.Equal(t, "ada", f.Query)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := ParseListFilter("", "DELETED", "", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = ParseListFilter("", "", "-1", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = ParseListFilter("", "", "", "!!!")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("cursor round trip", func(t *testing.T) {
		c := Cursor{CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 7000, time.UTC), ID: id.NewRegistrationID()}
		got, err := DecodeCursor(c.Encode())
		require.NoError(t, err)
		assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, c.ID, got.ID)
	})

	t.Run("query matches name and email case-insensitively", func(t *testing.T) {
		reg := &Registration{FirstName: "Ada", LastName: "Lovelace", Email: "ada@trust.org", Status: StatusPending}
		assert.True(t, ListFilter{Query: "ada lov"}.Matches(reg))
		assert.True(t, ListFilter{Query: "TRUST.ORG"}.Matches(reg))
		assert.False(t, ListFilter{Query: "grace"}.Matches(reg))
		assert.False(t, ListFilter{Status: StatusApproved}.Matches(reg))
	})
}
