package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type companyRequest struct {
	Name      string `json:"name" validate:"required,min=2"`
	Subdomain string `json:"subdomain" validate:"required,subdomain"`
	Status    string `json:"status" validate:"omitempty,oneof=active suspended blocked"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(companyRequest{Subdomain: "acme"})

	assert.EqualError(t, err, "name is required")
}

func TestValidateSubdomain(t *testing.T) {
	v := NewValidator()

	for _, ok := range []string{"acme", "acme-corp", "a1b", "x9-z"} {
		assert.NoError(t, v.Validate(companyRequest{Name: "Acme", Subdomain: ok}), ok)
	}
	for _, bad := range []string{"ab", "Acme", "-acme", "acme-", "ac_me", "acme.corp"} {
		assert.Error(t, v.Validate(companyRequest{Name: "Acme", Subdomain: bad}), bad)
	}
}

func TestValidateJoinsMessages(t *testing.T) {
	v := NewValidator()

	err := v.Validate(companyRequest{Name: "A", Subdomain: "acme", Status: "gone"})

	assert.EqualError(t, err, "name must be at least 2 characters; status must be one of: active suspended blocked")
}
