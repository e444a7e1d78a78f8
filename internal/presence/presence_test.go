package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	p := New("conn-1", "", "")

	assert.Equal(t, "conn-1", p.ConnectionID)
	assert.Equal(t, DefaultUsername, p.Username)
	assert.NotEmpty(t, p.Color)
	assert.False(t, p.LastActive.IsZero())
}

func TestNew_KeepsSuppliedValues(t *testing.T) {
	p := New("conn-1", "  alice  ", "#ff0000")

	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "#ff0000", p.Color)
}

func TestColorFor_Deterministic(t *testing.T) {
	assert.Equal(t, ColorFor("conn-1"), ColorFor("conn-1"))
}
