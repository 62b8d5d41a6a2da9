package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "CSE Department", sanitizeString("  CSE \t Department\n"))
	assert.Equal(t, "abcdef", normalizeHash(" 0xABCdef "))
	assert.Equal(t, "degree", normalizeCertType(" Degree "))

	reg := normalizeRegistration(domain.IssuerRegistration{
		Name:        " COE   Office ",
		Role:        " COE",
		Institution: "SSN  College",
	})
	assert.Equal(t, "COE Office", reg.Name)
	assert.Equal(t, "coe", reg.Role)
	assert.Equal(t, "SSN College", reg.Institution)
}
