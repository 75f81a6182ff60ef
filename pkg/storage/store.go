package storage

import "errors"

// ErrNotFound is returned when a key has no entry in a store.
var ErrNotFound = errors.New("not found")

// Collection names. The database backend uses them as bucket names, the
// legacy filesystem backend as directory names under the db dir.
const (
	CollectionNetworkParameters = "signed-network-parameters"
	CollectionNetworkMap        = "signed-network-map"
	CollectionNodeInfo          = "signed-node-info"
	CollectionParametersUpdate  = "parameters-update"
	CollectionText              = "etc"
)

// Well-known keys.
const (
	// KeyCurrentParameters points at the hash of the active parameters in
	// the text store.
	KeyCurrentParameters = "current-parameters"
	// KeyNextParametersUpdate holds the serialized pending update, absent if
	// none is scheduled.
	KeyNextParametersUpdate = "next-params-update"
	// KeyLatestNetworkMap is the fixed name the signed map is stored under.
	KeyLatestNetworkMap = "latest-network-map"
)

// BlobStore holds serialized signed artifacts keyed by a content hash or a
// symbolic name. Both backends implement the same contract.
type BlobStore interface {
	Put(key string, data []byte) error
	// Get returns ErrNotFound when the key is absent.
	Get(key string) ([]byte, error)
	// GetOrNull returns nil without error when the key is absent.
	GetOrNull(key string) ([]byte, error)
	Delete(key string) error
	GetAll() (map[string][]byte, error)
	GetKeys() ([]string, error)
	Clear() error
}

// TextStore holds named string pointers with upsert semantics.
type TextStore interface {
	Put(key, value string) error
	// Get returns ErrNotFound when the key is absent.
	Get(key string) (string, error)
	GetOrDefault(key, def string) (string, error)
	Delete(key string) error
	GetAll() (map[string]string, error)
	Clear() error
}
