package uid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.True(t, IsValid(id))
	assert.NotEqual(t, id, New())
}

func TestNewToken(t *testing.T) {
	tok := NewToken("rsf_")
	assert.True(t, strings.HasPrefix(tok, "rsf_"))
	assert.Len(t, tok, len("rsf_")+64)
	assert.NotContains(t, tok, "-")
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid("not-a-uuid"))
	assert.False(t, IsValid(""))
}
