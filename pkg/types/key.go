package types

import (
	"encoding/json"
	"fmt"

	"github.com/left-curve/dango-sdk-go/pkg/hashing"
)

// KeyType tags the public-key algorithm. The numeric values are the tag byte
// written into key-hash mode salts.
type KeyType uint8

const (
	KeyTypeSecp256r1 KeyType = 0
	KeyTypeSecp256k1 KeyType = 1
	KeyTypeEthereum  KeyType = 2
	KeyTypeEd25519   KeyType = 3
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeSecp256r1:
		return "secp256r1"
	case KeyTypeSecp256k1:
		return "secp256k1"
	case KeyTypeEthereum:
		return "ethereum"
	case KeyTypeEd25519:
		return "ed25519"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

func ParseKeyType(s string) (KeyType, error) {
	switch s {
	case "secp256r1":
		return KeyTypeSecp256r1, nil
	case "secp256k1":
		return KeyTypeSecp256k1, nil
	case "ethereum":
		return KeyTypeEthereum, nil
	case "ed25519":
		return KeyTypeEd25519, nil
	default:
		return 0, fmt.Errorf("unsupported key type: %s", s)
	}
}

// Key is a public key as registered with the account factory. For
// secp256r1 and secp256k1 Bytes is the 33 byte compressed point, for
// ethereum the 20 byte address, for ed25519 the 32 byte key.
type Key struct {
	Type  KeyType
	Bytes []byte
}

// KeyHash is SHA-256 of the raw key bytes.
func (k Key) KeyHash() hashing.Hash256 {
	return hashing.Sha256Hash(k.Bytes)
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]byte{k.Type.String(): k.Bytes})
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var m map[string][]byte
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("key must have exactly one variant, got %d", len(m))
	}
	for name, b := range m {
		kt, err := ParseKeyType(name)
		if err != nil {
			return err
		}
		k.Type = kt
		k.Bytes = b
	}
	return nil
}
