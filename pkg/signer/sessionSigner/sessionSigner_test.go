package sessionSigner

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/logger"
	"github.com/left-curve/dango-sdk-go/pkg/persistence/memory"
	"github.com/left-curve/dango-sdk-go/pkg/signer"
	"github.com/left-curve/dango-sdk-go/pkg/signer/rawKeySigner"
	"github.com/left-curve/dango-sdk-go/pkg/txErrors"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sender = address.MustParseAddress("0x1111111111111111111111111111111111111111")

// sessionParent hands out session credentials, which cannot authorize a
// session.
type sessionParent struct{}

func (sessionParent) GetKeyHash() hashing.Hash256 { return hashing.Hash256{} }

func (sessionParent) SignTx(context.Context, *types.UnsignedTxContext) (*signer.SignedTx, error) {
	return nil, nil
}

func (sessionParent) SignArbitrary(context.Context, interface{}) (types.Credential, error) {
	return &types.SessionCredential{}, nil
}

func newParent(t *testing.T) *rawKeySigner.RawKeySigner {
	t.Helper()
	p, err := rawKeySigner.GenerateSecp256k1(logger.NewNopLogger())
	require.NoError(t, err)
	return p
}

func testContext() *types.UnsignedTxContext {
	return &types.UnsignedTxContext{
		Sender:   sender,
		Username: "alice",
		ChainID:  "dango-1",
		Sequence: 1,
		GasLimit: 500,
	}
}

func TestCreateSession_EmbedsParentAuthorization(t *testing.T) {
	parent := newParent(t)
	s, err := CreateSession(context.Background(), parent, &CreateSessionParams{
		Username: "alice",
		Sender:   sender,
		ExpireAt: time.Now().Add(time.Hour),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, parent.GetKeyHash(), s.GetKeyHash())

	info := s.SessionInfo()
	assert.Len(t, info.SessionKey, 33)

	infoHash, err := signer.ArbitraryHash(info)
	require.NoError(t, err)
	assert.True(t, parent.Verify(infoHash, s.Record().Authorization.Signature))

	c := testContext()
	signed, err := s.SignTx(context.Background(), c)
	require.NoError(t, err)

	sc, ok := signed.Credential.(*types.SessionCredential)
	require.True(t, ok)
	assert.Equal(t, info, sc.SessionInfo)
	assert.Equal(t, parent.GetKeyHash(), sc.Authorization.KeyHash)
	require.Len(t, sc.SessionSignature, 64)

	hash, err := signer.SignDocHash(c)
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(info.SessionKey, hash[:], sc.SessionSignature))

	_, err = signer.StandardCredentialOf(sc)
	assert.True(t, txErrors.IsUnsupportedCredential(err))
}

func TestCreateSession_RejectsNonStandardParent(t *testing.T) {
	_, err := CreateSession(context.Background(), sessionParent{}, &CreateSessionParams{
		Username: "alice",
		ExpireAt: time.Now().Add(time.Hour),
	}, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, txErrors.IsUnsupportedCredential(err))
}

func TestCreateSession_Validation(t *testing.T) {
	parent := newParent(t)
	l := logger.NewNopLogger()

	_, err := CreateSession(context.Background(), nil, &CreateSessionParams{Username: "a", ExpireAt: time.Now().Add(time.Hour)}, l)
	assert.True(t, txErrors.IsValidationError(err))

	_, err = CreateSession(context.Background(), parent, &CreateSessionParams{ExpireAt: time.Now().Add(time.Hour)}, l)
	assert.True(t, txErrors.IsValidationError(err))

	_, err = CreateSession(context.Background(), parent, &CreateSessionParams{Username: "a", ExpireAt: time.Now().Add(-time.Second)}, l)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestSessionSigner_ExpiredSessionFails(t *testing.T) {
	s, err := CreateSession(context.Background(), newParent(t), &CreateSessionParams{
		Username: "alice",
		ExpireAt: time.Now().Add(time.Minute),
	}, logger.NewNopLogger())
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.True(t, s.IsExpired())

	_, err = s.SignTx(context.Background(), testContext())
	require.Error(t, err)
	assert.True(t, txErrors.IsValidationError(err))
}

func TestSessionSigner_PersistAndResume(t *testing.T) {
	store := memory.NewMemorySessionStore()
	s, err := CreateSession(context.Background(), newParent(t), &CreateSessionParams{
		Username: "alice",
		Sender:   sender,
		ExpireAt: time.Now().Add(time.Hour),
		Store:    store,
	}, logger.NewNopLogger())
	require.NoError(t, err)

	resumed, err := LoadLatest(store, "alice", logger.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, s.SessionInfo(), resumed.SessionInfo())
	assert.Equal(t, s.GetKeyHash(), resumed.GetKeyHash())

	signed, err := resumed.SignTx(context.Background(), testContext())
	require.NoError(t, err)
	sc := signed.Credential.(*types.SessionCredential)
	hash, err := signer.SignDocHash(testContext())
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(s.SessionInfo().SessionKey, hash[:], sc.SessionSignature))

	none, err := LoadLatest(store, "bob", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFromRecord_RejectsMismatchedSecret(t *testing.T) {
	s, err := CreateSession(context.Background(), newParent(t), &CreateSessionParams{
		Username: "alice",
		ExpireAt: time.Now().Add(time.Hour),
	}, logger.NewNopLogger())
	require.NoError(t, err)

	rec := s.Record()
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	rec.SessionSecret = crypto.FromECDSA(other)

	_, err = FromRecord(rec, logger.NewNopLogger())
	assert.Error(t, err)
}
