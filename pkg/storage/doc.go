/*
Package storage provides the persistence layer of the network map service.

Two backends implement the same pair of store interfaces: the embedded
BoltDB database that all production traffic runs on, and the legacy
filesystem layout that only exists to be migrated from at boot.

# Architecture

All state lives in five collections. Under BoltDB each collection is one
bucket in a single database file:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │            BoltStore                       │           │
	│  │  - File: <dataDir>/atlas.db                │           │
	│  │  - Format: B+tree with MVCC                │           │
	│  │  - Transactions: ACID with fsync           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Bucket Structure              │           │
	│  │  ┌──────────────────────────────────────┐  │           │
	│  │  │ signed-network-parameters (hash key) │  │           │
	│  │  │ signed-network-map        (fixed key)│  │           │
	│  │  │ signed-node-info          (hash key) │  │           │
	│  │  │ parameters-update         (fixed key)│  │           │
	│  │  │ etc                       (named key)│  │           │
	│  │  └──────────────────────────────────────┘  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │        Transaction Management              │           │
	│  │  - Read: db.View() - Concurrent reads      │           │
	│  │  - Write: db.Update() - Serialized writes  │           │
	│  │  - Values copied out before commit         │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Store Interfaces

BlobStore holds opaque byte payloads keyed by string; signed artifacts are
stored under their content address. TextStore holds small string values:
the current-parameters pointer, the pending update, the serialized signing
key. Both interfaces distinguish "absent" from "failed":

  - Get returns an error wrapping ErrNotFound for an absent key.
  - GetOrNull / GetOrDefault translate absence into a nil or default value
    and reserve errors for real faults.

# Collections and Well-Known Keys

The collection names and the fixed keys inside them are declared here as
constants so every package addresses storage the same way:

	store := db.Blobs(storage.CollectionNetworkMap)
	data, err := store.Get(storage.KeyLatestNetworkMap)

# Legacy Filesystem Backend

FileBlobStore and FileTextStore map each collection to a directory with one
file per key. Keys containing path separators are rejected outright so a
key can never escape its collection directory. pkg/migrate drains these
into BoltDB at startup.

# See Also

  - pkg/migrate - Filesystem to database migration
  - pkg/processor - The single writer over these stores
*/
package storage
