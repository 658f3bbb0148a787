package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelInvert(t *testing.T) {
	assert.Equal(t, Low, High.Invert())
	assert.Equal(t, High, Low.Invert())
}

func TestValidPin(t *testing.T) {
	assert.True(t, ValidPin(0))
	assert.True(t, ValidPin(MaxPins-1))
	assert.False(t, ValidPin(-1))
	assert.False(t, ValidPin(MaxPins))
}

func TestPullString(t *testing.T) {
	assert.Equal(t, "up", PullUp.String())
	assert.Equal(t, "down", PullDown.String())
	assert.Equal(t, "none", PullNone.String())
}
