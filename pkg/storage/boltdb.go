package storage

import (
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// collections created on open, one bucket each.
var boltBuckets = []string{
	CollectionNetworkParameters,
	CollectionNetworkMap,
	CollectionNodeInfo,
	CollectionParametersUpdate,
	CollectionText,
}

// BoltStore is the embedded database backend. Each collection is a bucket in
// a single bbolt file; blob and text views over a bucket share the same
// transactional semantics.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file under dataDir and ensures
// all collection buckets exist.
func OpenBolt(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "atlas.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Blobs returns the blob store view over a collection bucket.
func (s *BoltStore) Blobs(collection string) BlobStore {
	return &boltBlobStore{db: s.db, bucket: []byte(collection)}
}

// Texts returns the text store view over a collection bucket.
func (s *BoltStore) Texts(collection string) TextStore {
	return &boltTextStore{db: s.db, bucket: []byte(collection)}
}

type boltBlobStore struct {
	db     *bolt.DB
	bucket []byte
}

func (s *boltBlobStore) Put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), data)
	})
}

func (s *boltBlobStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		// Copy: bbolt data is only valid during the transaction.
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

func (s *boltBlobStore) GetOrNull(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data != nil {
			out = append([]byte(nil), data...)
		}
		return nil
	})
	return out, err
}

func (s *boltBlobStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *boltBlobStore) GetAll() (map[string][]byte, error) {
	all := make(map[string][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			all[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	return all, err
}

func (s *boltBlobStore) GetKeys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

func (s *boltBlobStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

type boltTextStore struct {
	db     *bolt.DB
	bucket []byte
}

func (s *boltTextStore) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(value))
	})
}

func (s *boltTextStore) Get(key string) (string, error) {
	var out string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		out = string(data)
		return nil
	})
	return out, err
}

func (s *boltTextStore) GetOrDefault(key, def string) (string, error) {
	out := def
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data != nil {
			out = string(data)
		}
		return nil
	})
	return out, err
}

func (s *boltTextStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *boltTextStore) GetAll() (map[string]string, error) {
	all := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			all[string(k)] = string(v)
			return nil
		})
	})
	return all, err
}

func (s *boltTextStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}
