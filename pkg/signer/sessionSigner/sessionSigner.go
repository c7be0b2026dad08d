// Package sessionSigner signs with a short-lived secp256k1 key whose
// authority is delegated by a long-lived signer.
package sessionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/persistence"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CreateSessionParams struct {
	Username string
	Sender   address.Address
	ExpireAt time.Time

	// Store, when set, receives the new session.
	Store persistence.ISessionStore
}

type SessionSigner struct {
	logger *zap.Logger
	record *persistence.SessionRecord
	key    *ecdsa.PrivateKey
	now    func() time.Time
}

var _ signer.ISigner = (*SessionSigner)(nil)

// CreateSession generates a session key and has parent authorize it by
// signing {session_key, expire_at}. The parent must produce a standard
// credential.
func CreateSession(ctx context.Context, parent signer.ISigner, params *CreateSessionParams, logger *zap.Logger) (*SessionSigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if parent == nil {
		return nil, txErrors.NewValidationError("parent", "a parent signer is required")
	}
	if params == nil || params.Username == "" {
		return nil, txErrors.NewValidationError("username", "must not be empty")
	}
	if !params.ExpireAt.After(time.Now()) {
		return nil, txErrors.NewValidationError("expireAt", "must be in the future")
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate session key")
	}
	info := types.SessionInfo{
		SessionKey: crypto.CompressPubkey(&key.PublicKey),
		ExpireAt:   types.TimestampFromTime(params.ExpireAt),
	}

	cred, err := parent.SignArbitrary(ctx, info)
	if err != nil {
		return nil, errors.Wrapf(err, "parent failed to authorize session")
	}
	authorization, err := signer.StandardCredentialOf(cred)
	if err != nil {
		return nil, err
	}

	record := &persistence.SessionRecord{
		ID:            persistence.SessionID(info.SessionKey),
		Username:      params.Username,
		Sender:        params.Sender,
		SessionSecret: crypto.FromECDSA(key),
		Info:          info,
		Authorization: *authorization,
		CreatedAt:     time.Now().Unix(),
	}
	if params.Store != nil {
		if err := params.Store.SaveSession(record); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
	}

	logger.Sugar().Infow("Created session",
		"username", params.Username,
		"sessionId", record.ID,
		"expireAt", info.ExpireAt.String(),
	)
	return &SessionSigner{logger: logger, record: record, key: key, now: time.Now}, nil
}

// FromRecord resumes a persisted session.
func FromRecord(record *persistence.SessionRecord, logger *zap.Logger) (*SessionSigner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if record == nil {
		return nil, fmt.Errorf("session record cannot be nil")
	}
	key, err := crypto.ToECDSA(record.SessionSecret)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid session secret for %s", record.ID)
	}
	if pub := crypto.CompressPubkey(&key.PublicKey); persistence.SessionID(pub) != persistence.SessionID(record.Info.SessionKey) {
		return nil, fmt.Errorf("session secret does not match session key for %s", record.ID)
	}
	return &SessionSigner{
		logger: logger,
		record: persistence.CopySessionRecord(record),
		key:    key,
		now:    time.Now,
	}, nil
}

// LoadLatest resumes the unexpired session of username that expires last.
// It returns nil when there is none.
func LoadLatest(store persistence.ISessionStore, username string, logger *zap.Logger) (*SessionSigner, error) {
	active, err := persistence.ActiveSessions(store, username, time.Now())
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return FromRecord(active[0], logger)
}

func (s *SessionSigner) Record() *persistence.SessionRecord {
	return persistence.CopySessionRecord(s.record)
}

func (s *SessionSigner) SessionInfo() types.SessionInfo {
	return s.record.Info
}

// GetKeyHash is the hash of the parent key that authorized the session.
func (s *SessionSigner) GetKeyHash() hashing.Hash256 {
	return s.record.Authorization.KeyHash
}

func (s *SessionSigner) IsExpired() bool {
	return s.record.IsExpired(s.now())
}

func (s *SessionSigner) SignTx(ctx context.Context, c *types.UnsignedTxContext) (*signer.SignedTx, error) {
	hash, err := signer.SignDocHash(c)
	if err != nil {
		return nil, err
	}
	cred, err := s.sign(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &signer.SignedTx{Credential: cred, SignedContext: c}, nil
}

func (s *SessionSigner) SignArbitrary(ctx context.Context, payload interface{}) (types.Credential, error) {
	hash, err := signer.ArbitraryHash(payload)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, hash)
}

func (s *SessionSigner) sign(ctx context.Context, hash hashing.Hash256) (*types.SessionCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.IsExpired() {
		return nil, txErrors.NewValidationError("session", fmt.Sprintf("session %s expired at %s", s.record.ID, s.record.Info.ExpireAt))
	}

	sig, err := crypto.Sign(hash[:], s.key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with session key")
	}
	return &types.SessionCredential{
		SessionInfo:      s.record.Info,
		SessionSignature: sig[:64],
		Authorization:    s.record.Authorization,
	}, nil
}
