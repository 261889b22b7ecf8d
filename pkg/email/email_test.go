package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a@x.com", Normalize("  A@X.com "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("jane@trust.org"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-an-email"))
	assert.False(t, Valid("Jane <jane@trust.org>"))
}

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("jane.doe@trust.org")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = DeriveNameFromEmail("kai@trust.org")
	assert.Equal(t, "Kai", first)
	assert.Equal(t, "", last)

	first, _ = DeriveNameFromEmail("..@trust.org")
	assert.Equal(t, "Commoner", first)
}
