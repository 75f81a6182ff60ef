/*
Package security implements signing, verification and key custody for the
network map service.

# Architecture

The service signs every artifact it serves with a single ECDSA P-256 key,
held by the Authority. Participants sign their own node infos with their
identity keys; the service verifies those but never holds them.

	┌─────────────────── KEY MATERIAL ───────────────────┐
	│                                                    │
	│  ┌──────────────────────────────────────────────┐  │
	│  │             Authority                        │  │
	│  │  - ECDSA P-256 key pair                      │  │
	│  │  - Self-signed X.509 certificate (10y)       │  │
	│  │  - Signs: parameters, network maps           │  │
	│  │  - Verifies: anything it signed              │  │
	│  └──────────────────┬───────────────────────────┘  │
	│                     │ SaveTo / LoadFrom            │
	│  ┌──────────────────▼───────────────────────────┐  │
	│  │             Cipher (AES-256-GCM)             │  │
	│  │  - Key derived from operator password        │  │
	│  │  - Private key encrypted before storage      │  │
	│  │  - Nonce prepended to ciphertext             │  │
	│  └──────────────────────────────────────────────┘  │
	└────────────────────────────────────────────────────┘

Signatures are ASN.1 ECDSA over the SHA-256 digest of the payload bytes.
Public keys travel as DER SubjectPublicKeyInfo, the same bytes a
certificate carries, so key comparison is plain byte equality.

# Verification Paths

Three verification entry points exist, from strictest to loosest:

  - Authority.Verify: the blob must be signed by this service's own key.
    Used when reading back stored parameters and maps.
  - VerifyBlob: the blob must verify against its embedded key, whoever
    that is. Used for participant acknowledgements.
  - VerifyNodeInfo: every legal identity declared in the node info must
    have signed the payload, one signature per identity in declaration
    order.

All signature failures are ErrBadSignature, wrapped with context.

# Notary Certificates

LoadNotariesFromDir derives the notary set from a directory of PEM
certificate files. The subject distinguished name becomes the notary
identity; a "nonvalidating" marker in the filename clears the validating
flag. Results are ordered by filename so repeated scans are stable.

# See Also

  - pkg/processor - Captures the Authority at start
  - pkg/watcher - Triggers notary directory rescans
*/
package security
