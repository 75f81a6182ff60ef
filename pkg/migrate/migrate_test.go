package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritasnet/atlas/pkg/storage"
)

func TestRunMovesLegacyData(t *testing.T) {
	dir := t.TempDir()

	// Seed the legacy filesystem layout.
	legacyBlobs, err := storage.NewFileBlobStore(dir, storage.CollectionNodeInfo)
	require.NoError(t, err)
	require.NoError(t, legacyBlobs.Put("node-1", []byte("payload-1")))
	require.NoError(t, legacyBlobs.Put("node-2", []byte("payload-2")))

	legacyTexts, err := storage.NewFileTextStore(dir, storage.CollectionText)
	require.NoError(t, err)
	require.NoError(t, legacyTexts.Put(storage.KeyCurrentParameters, "abc"))

	db, err := storage.OpenBolt(dir)
	require.NoError(t, err)
	defer db.Close()

	blobs, texts, err := Default(dir, db)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), blobs, texts))

	// Data is in the database.
	got, err := db.Blobs(storage.CollectionNodeInfo).Get("node-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload-1"), got)

	val, err := db.Texts(storage.CollectionText).Get(storage.KeyCurrentParameters)
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	// Sources are emptied.
	keys, err := legacyBlobs.GetKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()

	legacyBlobs, err := storage.NewFileBlobStore(dir, storage.CollectionNetworkParameters)
	require.NoError(t, err)
	require.NoError(t, legacyBlobs.Put("params-1", []byte("payload")))

	db, err := storage.OpenBolt(dir)
	require.NoError(t, err)
	defer db.Close()

	blobs, texts, err := Default(dir, db)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), blobs, texts))

	// A second run over the emptied sources changes nothing.
	require.NoError(t, Run(context.Background(), blobs, texts))

	got, err := db.Blobs(storage.CollectionNetworkParameters).Get("params-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestRunNothingToMigrate(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.OpenBolt(dir)
	require.NoError(t, err)
	defer db.Close()

	blobs, texts, err := Default(dir, db)
	require.NoError(t, err)
	assert.NoError(t, Run(context.Background(), blobs, texts))
}
