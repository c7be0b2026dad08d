// Package storetest is a conformance suite run against every ISessionStore
// implementation.
package storetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
	"github.com/left-curve/dango-sdk-go/pkg/persistence"
	"github.com/left-curve/dango-sdk-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRecord builds a distinct record for tests.
func NewRecord(id, username string, expireAt time.Time) *persistence.SessionRecord {
	return &persistence.SessionRecord{
		ID:            id,
		Username:      username,
		Sender:        address.MustParseAddress("0x1111111111111111111111111111111111111111"),
		SessionSecret: hashing.Sha256([]byte("secret-" + id)),
		Info: types.SessionInfo{
			SessionKey: append([]byte{0x02}, hashing.Sha256([]byte("pub-"+id))...),
			ExpireAt:   types.TimestampFromTime(expireAt),
		},
		Authorization: types.StandardCredential{
			KeyHash:   hashing.Sha256Hash([]byte("parent-" + username)),
			Signature: types.Secp256k1Signature(make([]byte, 64)),
		},
		CreatedAt: time.Now().Unix(),
	}
}

// Run exercises store behavior common to every backend. newStore must
// return an empty store; prefix keeps IDs unique on shared backends.
func Run(t *testing.T, prefix string, newStore func(t *testing.T) persistence.ISessionStore) {
	future := time.Now().Add(time.Hour)

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		rec := NewRecord(prefix+"save", "alice", future)
		require.NoError(t, store.SaveSession(rec))

		loaded, err := store.LoadSession(rec.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.Username, loaded.Username)
		assert.Equal(t, rec.SessionSecret, loaded.SessionSecret)
		assert.Equal(t, rec.Info, loaded.Info)
		assert.Equal(t, rec.Authorization.KeyHash, loaded.Authorization.KeyHash)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadSession(prefix + "missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveNil", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		err := store.SaveSession(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil SessionRecord")
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		rec := NewRecord(prefix+"overwrite", "alice", future)
		require.NoError(t, store.SaveSession(rec))
		rec.Username = "bob"
		require.NoError(t, store.SaveSession(rec))

		loaded, err := store.LoadSession(rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", loaded.Username)
	})

	t.Run("ListSorted", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, store.SaveSession(NewRecord(prefix+"list-"+id, "alice", future)))
		}
		list, err := store.ListSessions()
		require.NoError(t, err)

		var ids []string
		for _, s := range list {
			ids = append(ids, s.ID)
		}
		assert.Subset(t, ids, []string{prefix + "list-a", prefix + "list-b", prefix + "list-c"})
		for i := 1; i < len(ids); i++ {
			assert.True(t, ids[i-1] < ids[i], "ListSessions must be sorted by ID")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		rec := NewRecord(prefix+"delete", "alice", future)
		require.NoError(t, store.SaveSession(rec))
		require.NoError(t, store.DeleteSession(rec.ID))
		require.NoError(t, store.DeleteSession(rec.ID))

		loaded, err := store.LoadSession(rec.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("PruneAndActive", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		now := time.Now()
		require.NoError(t, store.SaveSession(NewRecord(prefix+"old", "carol", now.Add(-time.Minute))))
		require.NoError(t, store.SaveSession(NewRecord(prefix+"soon", "carol", now.Add(time.Minute))))
		require.NoError(t, store.SaveSession(NewRecord(prefix+"late", "carol", now.Add(time.Hour))))

		active, err := persistence.ActiveSessions(store, "carol", now)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, prefix+"late", active[0].ID)

		removed, err := persistence.PruneExpired(store, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, removed, 1)

		loaded, err := store.LoadSession(prefix + "old")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := NewRecord(fmt.Sprintf("%sconc-%d", prefix, i), "dave", future)
				assert.NoError(t, store.SaveSession(rec))
				_, err := store.LoadSession(rec.ID)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		list, err := store.ListSessions()
		require.NoError(t, err)
		count := 0
		for _, s := range list {
			if s.Username == "dave" {
				count++
			}
		}
		assert.GreaterOrEqual(t, count, 10)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.Error(t, store.HealthCheck())
		assert.Error(t, store.SaveSession(NewRecord(prefix+"closed", "alice", future)))
		_, err := store.LoadSession(prefix + "closed")
		assert.Error(t, err)
		_, err = store.ListSessions()
		assert.Error(t, err)
	})
}
