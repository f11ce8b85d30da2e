package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "0xabc", Normalize("  0xABC "))
	assert.Equal(t, "", Normalize("   "))
}

func TestSame(t *testing.T) {
	assert.True(t, Same("Alice", "alice "))
	assert.False(t, Same("alice", "bob"))
	assert.False(t, Same("", " "))
}

func TestOperators(t *testing.T) {
	ops := NewOperators("Operator-1", "", "ops@example.com")

	assert.True(t, ops.Contains("operator-1"))
	assert.True(t, ops.Contains(" OPS@example.com"))
	assert.False(t, ops.Contains("mallory"))
	assert.NoError(t, ops.Require("operator-1"))
	assert.ErrorIs(t, ops.Require("mallory"), ErrUnauthorized)
	assert.Equal(t, []string{"operator-1", "ops@example.com"}, ops.List())
}

func TestOperators_Nil(t *testing.T) {
	var ops *Operators
	assert.False(t, ops.Contains("anyone"))
	assert.ErrorIs(t, ops.Require("anyone"), ErrUnauthorized)
	assert.Nil(t, ops.List())
}
