package sharestore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/sharestore"
)

func TestStoreAndRetrieve(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "0xgenius", 3, []byte("share"), []byte("blob")))
	assert.True(t, s.Has("sig1"))
	entry := s.Get("sig1")
	require.NotNil(t, entry)
	assert.Equal(t, "0xgenius", entry.GeniusAddress)
	assert.Equal(t, 3, entry.ShareX)
}

func TestHasUnknownSignal(t *testing.T) {
	s := sharestore.New()
	assert.False(t, s.Has("missing"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "0xgenius", 1, nil, []byte("blob-bytes")))

	first, err := s.Release("sig1", "buyer1")
	require.NoError(t, err)
	second, err := s.Release("sig1", "buyer1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, len(second), len(first))
}

func TestReleaseNonexistentReturnsNil(t *testing.T) {
	s := sharestore.New()
	out, err := s.Release("missing", "buyer1")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestReleaseAtomicityAcrossBuyers(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "0xgenius", 1, nil, []byte("blob")))

	b1, err := s.Release("sig1", "buyer1")
	require.NoError(t, err)
	b2, err := s.Release("sig1", "buyer2")
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	entry := s.Get("sig1")
	assert.True(t, entry.ReleasedTo["buyer1"])
	assert.True(t, entry.ReleasedTo["buyer2"])
}

func TestRemoveCascadesReleaseRecord(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "0xgenius", 1, nil, []byte("blob")))
	_, err := s.Release("sig1", "buyer1")
	require.NoError(t, err)

	s.Remove("sig1")
	assert.False(t, s.Has("sig1"))

	require.NoError(t, s.Put("sig1", "0xgenius", 1, nil, []byte("blob")))
	entry := s.Get("sig1")
	assert.Empty(t, entry.ReleasedTo)
}

func TestDuplicateStoreIgnored(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "0xgenius", 1, nil, []byte("first")))
	require.NoError(t, s.Put("sig1", "other-genius", 9, nil, []byte("second")))

	entry := s.Get("sig1")
	assert.Equal(t, "0xgenius", entry.GeniusAddress)
	assert.Equal(t, []byte("first"), entry.EncryptedKeyBlob)
}

func TestPutInputValidation(t *testing.T) {
	s := sharestore.New()
	assert.Error(t, s.Put("", "genius", 1, nil, []byte("blob")))
	assert.Error(t, s.Put("sig1", "  ", 1, nil, []byte("blob")))
	assert.Error(t, s.Put("sig1", "genius", 1, nil, nil))
}

func TestShareInfoReturnsXCoord(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "genius", 42, nil, []byte("blob")))
	info, err := s.ShareInfo("sig1")
	require.NoError(t, err)
	assert.Equal(t, 42, info.X)
}

func TestShareInfoUnknownSignal(t *testing.T) {
	s := sharestore.New()
	_, err := s.ShareInfo("missing")
	assert.Error(t, err)
}

func TestCountAndActiveSignals(t *testing.T) {
	s := sharestore.New()
	require.NoError(t, s.Put("sig1", "genius", 1, nil, []byte("a")))
	require.NoError(t, s.Put("sig2", "genius", 2, nil, []byte("b")))
	assert.Equal(t, 2, s.Count())
	assert.ElementsMatch(t, []string{"sig1", "sig2"}, s.ActiveSignals())
}
