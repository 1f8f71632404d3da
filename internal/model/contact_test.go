package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://jobs.acme.com/careers?x=1", "acme.com"},
		{"http://www.acme.com", "acme.com"},
		{"acme.com", "acme.com"},
		{"careers.stripe.co.uk", "stripe.co.uk"},
		{"ACME.COM", "acme.com"},
		{"mailto:jane@acme.com", "acme.com"},
		{"acme.com:8443", "acme.com"},
		{"localhost", ""},
		{"", ""},
		{"acme..com", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RegistrableDomain(tt.in), "input %q", tt.in)
	}
}

func TestSameRegistrableDomain(t *testing.T) {
	assert.True(t, SameRegistrableDomain("https://careers.acme.com/jobs", "acme.com"))
	assert.True(t, SameRegistrableDomain("https://acme.com", "www.acme.com"))
	assert.False(t, SameRegistrableDomain("https://acme.io", "acme.com"))
	assert.False(t, SameRegistrableDomain("", "acme.com"))
}

func TestOrganizationKey(t *testing.T) {
	// domain wins over name when present
	assert.Equal(t, "acme.com", Organization{Name: "Acme Inc", Domain: "https://www.acme.com"}.Key())
	// name fallback normalizes case and whitespace
	assert.Equal(t, "acme inc", Organization{Name: "  Acme   INC "}.Key())
}

func TestContactFullName(t *testing.T) {
	assert.Equal(t, "Amy Salazar", Contact{FirstName: "Amy", LastName: "Salazar"}.FullName())
	assert.Equal(t, "Amy", Contact{FirstName: "Amy"}.FullName())
}
