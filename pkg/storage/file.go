package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileBlobStore is the legacy filesystem backend: one file per key under a
// collection directory. It only exists to be migrated from at boot.
type FileBlobStore struct {
	root string
}

// NewFileBlobStore creates the collection directory if needed.
func NewFileBlobStore(dbDir, collection string) (*FileBlobStore, error) {
	root := filepath.Join(dbDir, collection)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileBlobStore{root: root}, nil
}

func (s *FileBlobStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

func (s *FileBlobStore) Put(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (s *FileBlobStore) Get(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}

func (s *FileBlobStore) GetOrNull(key string) ([]byte, error) {
	data, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (s *FileBlobStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileBlobStore) GetAll() (map[string][]byte, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	all := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			return nil, err
		}
		all[e.Name()] = data
	}
	return all, nil
}

func (s *FileBlobStore) GetKeys() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileBlobStore) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// FileTextStore is the legacy filesystem text store, layered over a blob
// store with string values.
type FileTextStore struct {
	blobs *FileBlobStore
}

// NewFileTextStore creates the collection directory if needed.
func NewFileTextStore(dbDir, collection string) (*FileTextStore, error) {
	blobs, err := NewFileBlobStore(dbDir, collection)
	if err != nil {
		return nil, err
	}
	return &FileTextStore{blobs: blobs}, nil
}

func (s *FileTextStore) Put(key, value string) error {
	return s.blobs.Put(key, []byte(value))
}

func (s *FileTextStore) Get(key string) (string, error) {
	data, err := s.blobs.Get(key)
	return string(data), err
}

func (s *FileTextStore) GetOrDefault(key, def string) (string, error) {
	data, err := s.blobs.GetOrNull(key)
	if err != nil {
		return "", err
	}
	if data == nil {
		return def, nil
	}
	return string(data), nil
}

func (s *FileTextStore) Delete(key string) error {
	return s.blobs.Delete(key)
}

func (s *FileTextStore) GetAll() (map[string]string, error) {
	raw, err := s.blobs.GetAll()
	if err != nil {
		return nil, err
	}
	all := make(map[string]string, len(raw))
	for k, v := range raw {
		all[k] = string(v)
	}
	return all, nil
}

func (s *FileTextStore) Clear() error {
	return s.blobs.Clear()
}
