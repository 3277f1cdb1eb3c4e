package accountdb

import (
	"path/filepath"
	"testing"

	"github.com/govm-net/sim/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadSnapshotRoundTrips(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	accounts := map[string]account.Account{
		"alice": {AccountID: "alice", SignerKey: "key-a", Balance: 100, StorageUsage: 60, EncodedState: []byte(`[]`)},
		"bob":   {AccountID: "bob", SignerKey: "key-b", Balance: 200, StorageUsage: 70},
	}

	require.NoError(t, store.SaveSnapshot("session-1", accounts))

	loaded, err := store.LoadSnapshot("session-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, uint64(100), loaded["alice"].Balance)
	assert.Equal(t, []byte(`[]`), loaded["alice"].EncodedState)
	assert.Equal(t, uint64(200), loaded["bob"].Balance)
}

func TestSaveSnapshotSupersedesPrior(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveSnapshot("s", map[string]account.Account{
		"alice": {AccountID: "alice", Balance: 1},
	}))
	require.NoError(t, store.SaveSnapshot("s", map[string]account.Account{
		"alice": {AccountID: "alice", Balance: 2},
	}))

	loaded, err := store.LoadSnapshot("s")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, uint64(2), loaded["alice"].Balance)
}

func TestLoadSnapshotUnknownSessionIsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.LoadSnapshot("nope")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
