package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Hash is a hex-encoded SHA-256 digest. Signed artifacts are content-addressed
// by the hash of their raw payload bytes.
type Hash string

// HashBytes computes the content address of a byte slice.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// ParseHash validates a hex-encoded SHA-256 digest.
func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != sha256.Size {
		return "", fmt.Errorf("invalid hash %q: expected %d bytes, got %d", s, sha256.Size, len(raw))
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// Identity is a participant identity: an X.500-style distinguished name bound
// to its owning public key (DER-encoded SubjectPublicKeyInfo).
type Identity struct {
	Name      string `json:"name"`
	PublicKey []byte `json:"publicKey"`
}

// NameHash returns the hash of the identity's distinguished name. Admin
// operations address notaries by this value.
func (id Identity) NameHash() Hash {
	return HashBytes([]byte(id.Name))
}

// NotaryInfo is a notary identity plus its validating flag.
type NotaryInfo struct {
	Identity   Identity `json:"identity"`
	Validating bool     `json:"validating"`
}

// NetworkParameters is the protocol constitution shared by all participants.
// Every mutation increments Epoch by exactly one and advances ModifiedTime.
type NetworkParameters struct {
	MinimumPlatformVersion int          `json:"minimumPlatformVersion"`
	Notaries               []NotaryInfo `json:"notaries"`
	MaxMessageSize         int          `json:"maxMessageSize"`
	MaxTransactionSize     int          `json:"maxTransactionSize"`
	ModifiedTime           time.Time    `json:"modifiedTime"`
	Epoch                  int          `json:"epoch"`

	// Whitelist maps a contract's fully-qualified name to the ordered set of
	// attachment hashes approved to implement it.
	Whitelist map[string][]Hash `json:"whitelistedContractImplementations"`
}

// NodeInfo is a participant's self-description.
type NodeInfo struct {
	LegalIdentities []Identity `json:"legalIdentities"`
	Addresses       []string   `json:"addresses"`
	PlatformVersion int        `json:"platformVersion"`
}

// ParametersUpdate is a scheduled activation of new network parameters.
// At most one is in flight at any time.
type ParametersUpdate struct {
	NewParametersHash Hash      `json:"newParametersHash"`
	Description       string    `json:"description"`
	UpdateDeadline    time.Time `json:"updateDeadline"`
}

// NetworkMap is the aggregate snapshot participants poll for: the hashes of
// every published node info, the hash of the active parameters, and any
// scheduled parameter change.
type NetworkMap struct {
	NodeInfoHashes       []Hash            `json:"nodeInfoHashes"`
	NetworkParameterHash Hash              `json:"networkParameterHash"`
	ParametersUpdate     *ParametersUpdate `json:"parametersUpdate,omitempty"`
}
