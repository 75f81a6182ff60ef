package migrate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/veritasnet/atlas/pkg/log"
	"github.com/veritasnet/atlas/pkg/storage"
)

// BlobMigration copies one blob collection from the legacy filesystem
// backend into the database backend.
type BlobMigration struct {
	Name string
	From storage.BlobStore
	To   storage.BlobStore
}

// TextMigration copies one text collection.
type TextMigration struct {
	Name string
	From storage.TextStore
	To   storage.TextStore
}

// Run copies every entry of every migration into its destination and clears
// the source on success. All migrations run in parallel; the first failure
// cancels the rest and fails startup. Running again against emptied sources
// is a no-op.
func Run(ctx context.Context, blobs []BlobMigration, texts []TextMigration) error {
	logger := log.WithComponent("migrate")
	g, ctx := errgroup.WithContext(ctx)

	for _, m := range blobs {
		m := m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := m.From.GetAll()
			if err != nil {
				return fmt.Errorf("migration %s: failed to read source: %w", m.Name, err)
			}
			for k, v := range entries {
				if err := m.To.Put(k, v); err != nil {
					return fmt.Errorf("migration %s: failed to write %s: %w", m.Name, k, err)
				}
			}
			if len(entries) > 0 {
				if err := m.From.Clear(); err != nil {
					return fmt.Errorf("migration %s: failed to clear source: %w", m.Name, err)
				}
				logger.Info().Str("collection", m.Name).Int("entries", len(entries)).
					Msg("migrated filesystem store to database")
			}
			return nil
		})
	}

	for _, m := range texts {
		m := m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := m.From.GetAll()
			if err != nil {
				return fmt.Errorf("migration %s: failed to read source: %w", m.Name, err)
			}
			for k, v := range entries {
				if err := m.To.Put(k, v); err != nil {
					return fmt.Errorf("migration %s: failed to write %s: %w", m.Name, k, err)
				}
			}
			if len(entries) > 0 {
				if err := m.From.Clear(); err != nil {
					return fmt.Errorf("migration %s: failed to clear source: %w", m.Name, err)
				}
				logger.Info().Str("collection", m.Name).Int("entries", len(entries)).
					Msg("migrated filesystem store to database")
			}
			return nil
		})
	}

	return g.Wait()
}

// Default builds the five standard migrations from the legacy directory
// layout under dbDir into the database backend.
func Default(dbDir string, db *storage.BoltStore) ([]BlobMigration, []TextMigration, error) {
	blobCollections := []string{
		storage.CollectionNetworkParameters,
		storage.CollectionNetworkMap,
		storage.CollectionNodeInfo,
	}
	textCollections := []string{
		storage.CollectionParametersUpdate,
		storage.CollectionText,
	}

	var blobs []BlobMigration
	for _, c := range blobCollections {
		from, err := storage.NewFileBlobStore(dbDir, c)
		if err != nil {
			return nil, nil, err
		}
		blobs = append(blobs, BlobMigration{Name: c, From: from, To: db.Blobs(c)})
	}

	var texts []TextMigration
	for _, c := range textCollections {
		from, err := storage.NewFileTextStore(dbDir, c)
		if err != nil {
			return nil, nil, err
		}
		texts = append(texts, TextMigration{Name: c, From: from, To: db.Texts(c)})
	}

	return blobs, texts, nil
}
