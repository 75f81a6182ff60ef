package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltBlobStore(t *testing.T) {
	store := openTestStore(t)
	blobs := store.Blobs(CollectionNodeInfo)

	_, err := blobs.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := blobs.GetOrNull("missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, blobs.Put("a", []byte("payload-a")))
	require.NoError(t, blobs.Put("b", []byte("payload-b")))

	got, err := blobs.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload-a"), got)

	keys, err := blobs.GetKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys, "keys come back sorted")

	all, err := blobs.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, []byte("payload-b"), all["b"])

	require.NoError(t, blobs.Delete("a"))
	_, err = blobs.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, blobs.Delete("a"))

	require.NoError(t, blobs.Clear())
	keys, err = blobs.GetKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBoltTextStore(t *testing.T) {
	store := openTestStore(t)
	texts := store.Texts(CollectionText)

	_, err := texts.Get(KeyCurrentParameters)
	assert.ErrorIs(t, err, ErrNotFound)

	val, err := texts.GetOrDefault(KeyCurrentParameters, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", val)

	require.NoError(t, texts.Put(KeyCurrentParameters, "abc123"))

	val, err = texts.Get(KeyCurrentParameters)
	require.NoError(t, err)
	assert.Equal(t, "abc123", val)

	val, err = texts.GetOrDefault(KeyCurrentParameters, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "abc123", val)

	all, err := texts.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyCurrentParameters: "abc123"}, all)

	require.NoError(t, texts.Delete(KeyCurrentParameters))
	_, err = texts.Get(KeyCurrentParameters)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestBoltCollectionsIsolated checks that two collections over the same file
// never see each other's keys.
func TestBoltCollectionsIsolated(t *testing.T) {
	store := openTestStore(t)
	a := store.Blobs(CollectionNodeInfo)
	b := store.Blobs(CollectionNetworkMap)

	require.NoError(t, a.Put("shared-key", []byte("from-a")))

	_, err := b.Get("shared-key")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put("shared-key", []byte("from-b")))
	require.NoError(t, a.Clear())

	got, err := b.Get("shared-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-b"), got)
}

func TestBoltReopenPersists(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBolt(dir)
	require.NoError(t, err)
	require.NoError(t, store.Blobs(CollectionNetworkParameters).Put("k", []byte("v")))
	require.NoError(t, store.Close())

	store, err = OpenBolt(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Blobs(CollectionNetworkParameters).Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
