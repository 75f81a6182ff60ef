package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNotaryCert(t *testing.T, dir, filename, org string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{org}, CommonName: org + " Notary"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	out := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), out, 0644))
}

func TestLoadNotariesFromDir(t *testing.T) {
	dir := t.TempDir()
	writeNotaryCert(t, dir, "beta-nonvalidating.pem", "Beta")
	writeNotaryCert(t, dir, "alpha.pem", "Alpha")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a cert"), 0644))

	notaries, err := LoadNotariesFromDir(dir, "*.pem")
	require.NoError(t, err)
	require.Len(t, notaries, 2)

	// Ordered by filename.
	assert.Contains(t, notaries[0].Identity.Name, "Alpha")
	assert.True(t, notaries[0].Validating)
	assert.Contains(t, notaries[1].Identity.Name, "Beta")
	assert.False(t, notaries[1].Validating, "filename marker makes it non-validating")
	assert.NotEmpty(t, notaries[0].Identity.PublicKey)
}

func TestLoadNotariesEmptyDir(t *testing.T) {
	notaries, err := LoadNotariesFromDir(t.TempDir(), "*.pem")
	require.NoError(t, err)
	assert.Empty(t, notaries)
}

func TestLoadNotariesRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pem"), []byte("not a cert"), 0644))

	_, err := LoadNotariesFromDir(dir, "*.pem")
	assert.Error(t, err)
}
