package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkutxo/internal/falcon"
	"zkutxo/internal/field"
	"zkutxo/internal/utxo"
)

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestLoadStateEmpty(t *testing.T) {
	db, _ := openTemp(t)
	s, ok, err := db.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, s)

	roots, err := db.Roots()
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestSaveStateAndRootHistory(t *testing.T) {
	db, path := openTemp(t)
	owner := field.NewWord(1, 2, 3, 4)

	s := utxo.NewState()
	require.NoError(t, db.SaveState(s))
	first := s.Root()

	require.NoError(t, s.Insert(utxo.NewUtxo(owner, 10)))
	require.NoError(t, s.Insert(utxo.NewUtxo(owner, 10)))
	require.NoError(t, db.SaveState(s))

	got, ok, err := db.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Root().Equal(s.Root()))
	assert.Equal(t, s.Utxos(), got.Utxos())

	roots, err := db.Roots()
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.True(t, roots[0].Equal(first))
	assert.True(t, roots[1].Equal(s.Root()))

	// history survives a reopen
	require.NoError(t, db.Close())
	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	roots, err = db2.Roots()
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestKeys(t *testing.T) {
	db, _ := openTemp(t)
	k, err := utxo.GenerateKey(falcon.NewSeededReader([]byte("store-key")))
	require.NoError(t, err)

	_, ok, err := db.GetKey(k.Owner)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutKey(k))
	got, ok, err := db.GetKey(k.Owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Owner.Equal(k.Owner))
	assert.Equal(t, k.Pair.Bytes(), got.Pair.Bytes())

	owners, err := db.Owners()
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.True(t, owners[0].Equal(k.Owner))
}
