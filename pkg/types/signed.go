package types

import (
	"encoding/json"
	"fmt"
)

// SignedBlob is a payload signed by the network map service key. Raw holds
// the canonical payload bytes produced once at signing time; the blob's
// content address is the hash of those bytes, so the serialization must
// never be regenerated after signing.
type SignedBlob struct {
	Raw       []byte `json:"raw"`
	Signature []byte `json:"signature"`
	PublicKey []byte `json:"publicKey"`
}

// Hash returns the blob's content address.
func (b *SignedBlob) Hash() Hash {
	return HashBytes(b.Raw)
}

// Encode serializes the blob for storage and the wire.
func (b *SignedBlob) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeSignedBlob parses a stored or inbound signed blob.
func DecodeSignedBlob(data []byte) (*SignedBlob, error) {
	var b SignedBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("malformed signed blob: %w", err)
	}
	if len(b.Raw) == 0 || len(b.Signature) == 0 {
		return nil, fmt.Errorf("malformed signed blob: missing payload or signature")
	}
	return &b, nil
}

// SignedNodeInfo is a node's self-description signed by its identity keys,
// one signature per legal identity, in declaration order.
type SignedNodeInfo struct {
	Raw        []byte   `json:"raw"`
	Signatures [][]byte `json:"signatures"`
}

// Hash returns the content address of the node info payload. Node infos are
// stored under the hex form of this value.
func (s *SignedNodeInfo) Hash() Hash {
	return HashBytes(s.Raw)
}

// Encode serializes the signed node info for storage and the wire.
func (s *SignedNodeInfo) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSignedNodeInfo parses a stored or inbound signed node info.
func DecodeSignedNodeInfo(data []byte) (*SignedNodeInfo, error) {
	var s SignedNodeInfo
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("malformed signed node info: %w", err)
	}
	if len(s.Raw) == 0 || len(s.Signatures) == 0 {
		return nil, fmt.Errorf("malformed signed node info: missing payload or signatures")
	}
	return &s, nil
}
