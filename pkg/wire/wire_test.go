package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/wire"
)

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, wire.ValidateSessionID("abc-123_XYZ"))
	assert.Error(t, wire.ValidateSessionID(""))
	assert.Error(t, wire.ValidateSessionID("has a space"))
}

func TestValidateXCoord(t *testing.T) {
	assert.NoError(t, wire.ValidateXCoord(1))
	assert.NoError(t, wire.ValidateXCoord(255))
	assert.Error(t, wire.ValidateXCoord(0))
	assert.Error(t, wire.ValidateXCoord(256))
}

func TestValidateAvailableIndices(t *testing.T) {
	assert.NoError(t, wire.ValidateAvailableIndices([]int{1, 5, 10}))
	assert.Error(t, wire.ValidateAvailableIndices([]int{0}))
	assert.Error(t, wire.ValidateAvailableIndices([]int{11}))
	assert.Error(t, wire.ValidateAvailableIndices([]int{3, 3}))
}

func TestHexElementRoundTrip(t *testing.T) {
	e := field.FromUint64(424242)
	encoded := wire.Encode(e)
	decoded, err := encoded.Decode()
	assert.NoError(t, err)
	assert.True(t, e.Equal(decoded))
}

func TestHexElementDecodeRejectsGarbage(t *testing.T) {
	_, err := wire.HexElement("not-hex!!").Decode()
	assert.Error(t, err)
}
