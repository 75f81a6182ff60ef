package security

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veritasnet/atlas/pkg/types"
)

// LoadNotariesFromDir derives the notary set from certificate files in a
// directory, one PEM-encoded notary certificate per file. Notaries are
// validating unless the filename carries a "nonvalidating" marker.
// The result is ordered by filename so repeated scans are stable.
func LoadNotariesFromDir(dir, pattern string) ([]types.NotaryInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad notary file pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var notaries []types.NotaryInfo
	for _, path := range matches {
		notary, err := loadNotaryFile(path)
		if err != nil {
			return nil, fmt.Errorf("notary file %s: %w", filepath.Base(path), err)
		}
		notaries = append(notaries, *notary)
	}
	return notaries, nil
}

func loadNotaryFile(path string) (*types.NotaryInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no PEM certificate found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	name := strings.ToLower(filepath.Base(path))
	return &types.NotaryInfo{
		Identity: types.Identity{
			Name:      cert.Subject.String(),
			PublicKey: cert.RawSubjectPublicKeyInfo,
		},
		Validating: !strings.Contains(name, "nonvalidating"),
	}, nil
}
