package security

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/veritasnet/atlas/pkg/storage"
	"github.com/veritasnet/atlas/pkg/types"
)

var (
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("invalid signature")
	// ErrNotInitialized is returned when the signing key has not been
	// generated or loaded yet.
	ErrNotInitialized = errors.New("signing authority not initialized")
)

const (
	// Signing certificate validity: 10 years
	certValidity = 10 * 365 * 24 * time.Hour
	// Text store key the serialized authority lives under
	authorityStoreKey = "network-map-key"
)

// Authority holds the network map signing key pair. It signs every served
// artifact and verifies signed payloads against its own key. The key must be
// generated or loaded before the processor starts; the processor captures a
// reference at start and never re-reads it.
type Authority struct {
	mu   sync.RWMutex
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

// authorityData is the serialized form for storage. The private key is
// encrypted at rest.
type authorityData struct {
	CertDER         []byte `json:"certDER"`
	EncryptedKeyDER []byte `json:"encryptedKeyDER"`
}

// NewAuthority creates an empty signing authority.
func NewAuthority() *Authority {
	return &Authority{}
}

// Generate creates a fresh ECDSA P-256 key pair and a self-signed
// certificate rooted at commonName.
func (a *Authority) Generate(commonName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Atlas Network Map"},
			CommonName:   commonName,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create signing certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	a.cert = cert
	a.key = key
	return nil
}

// IsInitialized returns true once a key pair is present.
func (a *Authority) IsInitialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cert != nil && a.key != nil
}

// Certificate returns the signing certificate.
func (a *Authority) Certificate() *x509.Certificate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cert
}

// PublicKeyDER returns the signing public key as DER SubjectPublicKeyInfo.
func (a *Authority) PublicKeyDER() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cert == nil {
		return nil
	}
	return a.cert.RawSubjectPublicKeyInfo
}

// Sign signs payload bytes and returns the signed blob. The payload bytes
// become the blob's canonical serialization, so the caller must not
// re-encode them afterwards.
func (a *Authority) Sign(payload []byte) (*types.SignedBlob, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.key == nil || a.cert == nil {
		return nil, ErrNotInitialized
	}

	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &types.SignedBlob{
		Raw:       payload,
		Signature: sig,
		PublicKey: a.cert.RawSubjectPublicKeyInfo,
	}, nil
}

// Verify checks that the blob was signed by this authority and returns the
// payload bytes.
func (a *Authority) Verify(blob *types.SignedBlob) ([]byte, error) {
	a.mu.RLock()
	own := a.cert
	a.mu.RUnlock()

	if own == nil {
		return nil, ErrNotInitialized
	}
	if !bytes.Equal(blob.PublicKey, own.RawSubjectPublicKeyInfo) {
		return nil, fmt.Errorf("%w: signer is not the network map key", ErrBadSignature)
	}
	return VerifyBlob(blob)
}

// VerifyBlob checks the blob's signature against its embedded public key and
// returns the payload bytes.
func VerifyBlob(blob *types.SignedBlob) ([]byte, error) {
	if err := VerifyDetached(blob.PublicKey, blob.Raw, blob.Signature); err != nil {
		return nil, err
	}
	return blob.Raw, nil
}

// VerifyDetached verifies an ASN.1 ECDSA signature over payload with a DER
// SubjectPublicKeyInfo public key.
func VerifyDetached(publicKeyDER, payload, signature []byte) error {
	pub, err := x509.ParsePKIXPublicKey(publicKeyDER)
	if err != nil {
		return fmt.Errorf("%w: unparseable public key: %v", ErrBadSignature, err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: unsupported key type %T", ErrBadSignature, pub)
	}
	digest := sha256.Sum256(payload)
	if !ecdsa.VerifyASN1(ecKey, digest[:], signature) {
		return ErrBadSignature
	}
	return nil
}

// SaveTo persists the authority into the text store, private key encrypted.
func (a *Authority) SaveTo(store storage.TextStore, cipher *Cipher) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.cert == nil || a.key == nil {
		return ErrNotInitialized
	}

	keyDER, err := x509.MarshalECPrivateKey(a.key)
	if err != nil {
		return fmt.Errorf("failed to marshal signing key: %w", err)
	}
	encrypted, err := cipher.Encrypt(keyDER)
	if err != nil {
		return fmt.Errorf("failed to encrypt signing key: %w", err)
	}

	data, err := json.Marshal(authorityData{
		CertDER:         a.cert.Raw,
		EncryptedKeyDER: encrypted,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authority: %w", err)
	}

	return store.Put(authorityStoreKey, base64.StdEncoding.EncodeToString(data))
}

// LoadOrGenerate restores the authority from the store, generating and
// persisting a fresh key pair only when none has been saved yet. Any other
// load failure (wrong password, corrupt record) is returned as-is: the
// network's trust root must never be overwritten, since every artifact
// participants hold is signed by it. The returned flag reports whether a new
// key was generated.
func LoadOrGenerate(store storage.TextStore, cipher *Cipher, commonName string) (*Authority, bool, error) {
	a := NewAuthority()
	err := a.LoadFrom(store, cipher)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load signing key: %w", err)
	}

	if err := a.Generate(commonName); err != nil {
		return nil, false, err
	}
	if err := a.SaveTo(store, cipher); err != nil {
		return nil, false, fmt.Errorf("failed to persist signing key: %w", err)
	}
	return a, true, nil
}

// LoadFrom restores a previously saved authority. Returns
// storage.ErrNotFound (wrapped) when none has been saved.
func (a *Authority) LoadFrom(store storage.TextStore, cipher *Cipher) error {
	encoded, err := store.Get(authorityStoreKey)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("corrupt stored authority: %w", err)
	}

	var data authorityData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("corrupt stored authority: %w", err)
	}

	keyDER, err := cipher.Decrypt(data.EncryptedKeyDER)
	if err != nil {
		return fmt.Errorf("failed to decrypt signing key: %w", err)
	}
	key, err := x509.ParseECPrivateKey(keyDER)
	if err != nil {
		return fmt.Errorf("failed to parse signing key: %w", err)
	}
	cert, err := x509.ParseCertificate(data.CertDER)
	if err != nil {
		return fmt.Errorf("failed to parse signing certificate: %w", err)
	}

	a.mu.Lock()
	a.cert = cert
	a.key = key
	a.mu.Unlock()
	return nil
}
