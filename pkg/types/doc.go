/*
Package types defines the wire and storage types of the Atlas network map
service.

Every artifact the service signs or serves is defined here: network
parameters, node infos, the network map itself, and the signed envelopes they
travel in. All types serialize as JSON.

# Content Addressing

Signed artifacts are addressed by the SHA-256 digest of their raw payload
bytes, rendered as lowercase hex (the Hash type). The payload serialization
is produced exactly once, at signing time, and carried verbatim inside the
signed envelope from then on. Re-encoding a payload would change its bytes
and therefore its address, so nothing in the system ever does that:

	payload bytes ──sha256──▶ Hash ──▶ storage key, URL path segment

# Signed Envelopes

Two envelope shapes exist:

  - SignedBlob: a payload signed by the network map service key. Used for
    network parameters and the network map. Carries the signing key so
    participants can pin it.
  - SignedNodeInfo: a node's self-description signed by its own identity
    keys, one signature per legal identity, in declaration order. The
    service verifies but never re-signs these.

# Epoch Discipline

NetworkParameters carries a monotonically increasing Epoch. Every accepted
mutation increments it by exactly one and refreshes ModifiedTime; consumers
can order any two parameter sets by epoch alone.

# See Also

  - pkg/security - Signature creation and verification
  - pkg/params - Parameter change algebra
  - pkg/processor - Where these types are minted and mutated
*/
package types
