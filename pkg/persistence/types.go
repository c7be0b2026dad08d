package persistence

import (
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/types"
)

// SessionRecord is everything needed to resume signing with a session key.
type SessionRecord struct {
	// ID is the uppercase hex SHA-256 of the compressed session public key.
	ID string `json:"id"`

	Username string          `json:"username"`
	Sender   address.Address `json:"sender"`

	// SessionSecret is the 32 byte secp256k1 session private key.
	SessionSecret []byte `json:"sessionSecret"`

	Info          types.SessionInfo        `json:"sessionInfo"`
	Authorization types.StandardCredential `json:"authorization"`

	// CreatedAt is a unix timestamp in seconds.
	CreatedAt int64 `json:"createdAt"`
}

// SessionID derives the record ID from a compressed session public key.
func SessionID(sessionKey []byte) string {
	return hashing.Sha256Hash(sessionKey).String()
}

// IsExpired reports whether the session can no longer be used at now.
func (s *SessionRecord) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !types.TimestampFromTime(now).Before(s.Info.ExpireAt)
}
