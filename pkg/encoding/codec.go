package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
)

// EncodeHex returns the lowercase unprefixed hex encoding of b.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// EncodeHexPrefixed returns the 0x prefixed lowercase hex encoding of b.
func EncodeHexPrefixed(b []byte) string {
	return hexutil.Encode(b)
}

// EncodeHexUpper returns the uppercase unprefixed hex encoding, the form the
// chain uses for hashes.
func EncodeHexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// DecodeHex decodes hex with or without a 0x prefix. Odd length input and
// non-hex characters fail with an EncodingError; nothing is ever truncated.
func DecodeHex(s string) ([]byte, error) {
	if has0xPrefix(s) {
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, txErrors.NewEncodingError("decode hex", s, err)
		}
		return b, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, txErrors.NewEncodingError("decode hex", s, err)
	}
	return b, nil
}

// DecodeHexFixed decodes hex and requires exactly n bytes.
func DecodeHexFixed(s string, n int) ([]byte, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, txErrors.NewEncodingError("decode hex", s, fmt.Errorf("expected %d bytes, got %d", n, len(b)))
	}
	return b, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes padded standard base64 and rejects non-canonical
// trailing bits.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, txErrors.NewEncodingError("decode base64", s, err)
	}
	return b, nil
}

// EncodeBase64URL is the unpadded URL-safe alphabet used by WebAuthn
// challenges.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, txErrors.NewEncodingError("decode base64url", s, err)
	}
	return b, nil
}

func EncodeUTF8(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, txErrors.NewEncodingError("encode utf8", s, fmt.Errorf("invalid utf-8"))
	}
	return []byte(s), nil
}

func DecodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", txErrors.NewEncodingError("decode utf8", EncodeHex(b), fmt.Errorf("invalid utf-8"))
	}
	return string(b), nil
}

func Uint32ToBigEndian(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func Uint64ToBigEndian(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func BigEndianToUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, txErrors.NewEncodingError("decode uint32", EncodeHex(b), fmt.Errorf("expected 4 bytes, got %d", len(b)))
	}
	return binary.BigEndian.Uint32(b), nil
}

func BigEndianToUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, txErrors.NewEncodingError("decode uint64", EncodeHex(b), fmt.Errorf("expected 8 bytes, got %d", len(b)))
	}
	return binary.BigEndian.Uint64(b), nil
}
