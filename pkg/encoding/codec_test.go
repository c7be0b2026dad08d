package encoding

import (
	"testing"

	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHex_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		[]byte("hello world"),
	}
	for _, b := range inputs {
		decoded, err := DecodeHex(EncodeHex(b))
		require.NoError(t, err)
		assert.Equal(t, b, decoded)

		decoded, err = DecodeHex(EncodeHexPrefixed(b))
		require.NoError(t, err)
		assert.Equal(t, b, decoded)
	}
}

func TestDecodeHex_Malformed(t *testing.T) {
	for _, input := range []string{"a", "aaa", "gg", "0xa", "0xzz"} {
		_, err := DecodeHex(input)
		require.Error(t, err, input)
		assert.True(t, txErrors.IsEncodingError(err), input)
	}
}

func TestDecodeHex_UpperAndMixedCase(t *testing.T) {
	b, err := DecodeHex("DEADbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
	assert.Equal(t, "DEADBEEF", EncodeHexUpper(b))
}

func TestDecodeHexFixed_WrongLength(t *testing.T) {
	_, err := DecodeHexFixed("0xdead", 4)
	require.Error(t, err)
	assert.True(t, txErrors.IsEncodingError(err))
}

func TestDecodeBase64(t *testing.T) {
	b, err := DecodeBase64(EncodeBase64([]byte{1, 2, 3, 4, 5}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b)

	for _, input := range []string{"abc", "!!!!", "AQI=="} {
		_, err := DecodeBase64(input)
		require.Error(t, err, input)
		assert.True(t, txErrors.IsEncodingError(err))
	}
}

func TestDecodeBase64URL(t *testing.T) {
	payload := []byte{0xfb, 0xff, 0xfe}
	encoded := EncodeBase64URL(payload)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")

	b, err := DecodeBase64URL(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, b)
}

func TestUTF8(t *testing.T) {
	b, err := EncodeUTF8("héllo")
	require.NoError(t, err)
	s, err := DecodeUTF8(b)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	_, err = DecodeUTF8([]byte{0xff, 0xfe})
	assert.True(t, txErrors.IsEncodingError(err))
}

func TestBigEndian(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 1, 2}, Uint32ToBigEndian(258))
	v, err := BigEndianToUint32([]byte{0, 0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(258), v)

	v64, err := BigEndianToUint64(Uint64ToBigEndian(1 << 40))
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	_, err = BigEndianToUint32([]byte{1, 2})
	assert.True(t, txErrors.IsEncodingError(err))
}

func TestSerializeCanonical_SortsKeysRecursively(t *testing.T) {
	type inner struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
	}
	type outer struct {
		Second inner                  `json:"second"`
		First  map[string]interface{} `json:"first"`
	}
	v := outer{
		Second: inner{Zeta: 1, Alpha: "<a&b>"},
		First:  map[string]interface{}{"b": 2, "a": []int{3, 1}},
	}

	out, err := SerializeCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"first":{"a":[3,1],"b":2},"second":{"alpha":"<a&b>","zeta":1}}`, string(out))
}

func TestCanonicalizeJSON_PreservesLargeNumbers(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`{"n": 340282366920938463463374607431768211455, "a": 1.50}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1.50,"n":340282366920938463463374607431768211455}`, string(out))
}
