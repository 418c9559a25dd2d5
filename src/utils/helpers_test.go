package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithSuffix(t *testing.T) {
	t.Setenv("API_ENV", "production")
	assert.Equal(t, "Emails", WithSuffix("Emails"))
	assert.True(t, IsProd())

	t.Setenv("API_ENV", "local")
	assert.Equal(t, "Emails_local", WithSuffix("Emails"))
	assert.True(t, IsLocal())
}
