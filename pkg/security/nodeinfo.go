package security

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/veritasnet/atlas/pkg/types"
)

// VerifyNodeInfo checks every identity signature on a published node info
// and returns the decoded payload. One signature per legal identity, in
// declaration order.
func VerifyNodeInfo(signed *types.SignedNodeInfo) (*types.NodeInfo, error) {
	var ni types.NodeInfo
	if err := json.Unmarshal(signed.Raw, &ni); err != nil {
		return nil, fmt.Errorf("malformed node info payload: %w", err)
	}
	if len(ni.LegalIdentities) == 0 {
		return nil, fmt.Errorf("node info has no legal identities")
	}
	if len(signed.Signatures) != len(ni.LegalIdentities) {
		return nil, fmt.Errorf("%w: %d signatures for %d identities",
			ErrBadSignature, len(signed.Signatures), len(ni.LegalIdentities))
	}

	for i, id := range ni.LegalIdentities {
		if err := VerifyDetached(id.PublicKey, signed.Raw, signed.Signatures[i]); err != nil {
			return nil, fmt.Errorf("identity %q: %w", id.Name, err)
		}
	}
	return &ni, nil
}

// SignNodeInfo serializes and signs a node info with its identity keys, in
// declaration order. Used by client tooling and tests.
func SignNodeInfo(ni *types.NodeInfo, keys []*ecdsa.PrivateKey) (*types.SignedNodeInfo, error) {
	if len(keys) != len(ni.LegalIdentities) {
		return nil, fmt.Errorf("%d keys for %d identities", len(keys), len(ni.LegalIdentities))
	}

	raw, err := json.Marshal(ni)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node info: %w", err)
	}

	digest := sha256.Sum256(raw)
	sigs := make([][]byte, len(keys))
	for i, key := range keys {
		sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
		if err != nil {
			return nil, fmt.Errorf("failed to sign node info: %w", err)
		}
		sigs[i] = sig
	}

	return &types.SignedNodeInfo{Raw: raw, Signatures: sigs}, nil
}

// MarshalPublicKey encodes an ECDSA public key as DER SubjectPublicKeyInfo.
func MarshalPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return der, nil
}
