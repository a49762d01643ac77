package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("bob"))
	assert.True(t, IsValidUsername("jane.doe_99-x"))
	assert.False(t, IsValidUsername("ab"))
	assert.False(t, IsValidUsername("robert'); DROP TABLE user_auth;--"))
	assert.False(t, IsValidUsername("with space"))
	assert.False(t, IsValidUsername(strings.Repeat("a", MaxUsernameLen+1)))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("secret"))
	assert.False(t, IsValidPassword("12345"))
}
