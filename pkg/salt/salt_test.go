package salt

import (
	"strings"
	"testing"

	"github.com/left-curve/dango-sdk-go/pkg/encoding"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForIndex_Layout(t *testing.T) {
	s, err := ForIndex("javier", 7)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{6}, []byte("javier")...), 7), s)
	assert.Len(t, s, 1+len("javier")+1)
}

func TestForIndex_MultibyteUsername(t *testing.T) {
	s, err := ForIndex("josé", 0)
	require.NoError(t, err)
	assert.Equal(t, byte(5), s[0])
	assert.Len(t, s, 1+5+1)
}

func TestForKey_Layout(t *testing.T) {
	pub := make([]byte, 33)
	pub[0] = 0x02
	keyHash := hashing.Sha256Hash(pub)

	s, err := ForKey("alice", keyHash, types.KeyTypeSecp256k1, encoding.EncodeBase64(pub))
	require.NoError(t, err)
	require.Len(t, s, 1+5+32+1+33)

	assert.Equal(t, byte(5), s[0])
	assert.Equal(t, "alice", string(s[1:6]))
	assert.Equal(t, keyHash[:], s[6:38])
	assert.Equal(t, byte(types.KeyTypeSecp256k1), s[38])
	assert.Equal(t, pub, s[39:])
}

func TestEncode_UsernameTooLong(t *testing.T) {
	_, err := ForIndex(strings.Repeat("a", 256), 0)
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))

	_, err = ForIndex(strings.Repeat("a", 255), 0)
	assert.NoError(t, err)
}

func TestEncode_ModeMisuse(t *testing.T) {
	_, err := Encode(Params{Username: "bob"})
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))

	idx := uint8(1)
	kh := hashing.Hash256{}
	_, err = Encode(Params{Username: "bob", AccountIndex: &idx, KeyHash: &kh, PublicKey: "AA=="})
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestEncode_BadPublicKey(t *testing.T) {
	_, err := ForKey("bob", hashing.Hash256{}, types.KeyTypeSecp256r1, "not base64!")
	require.Error(t, err)
	assert.True(t, txErrors.IsEncodingError(err))
}
