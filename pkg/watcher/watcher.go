package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/veritasnet/atlas/pkg/log"
)

// DefaultInterval is how often the directory is rescanned.
const DefaultInterval = 2 * time.Second

// DirWatcher polls a directory and invokes a callback whenever the aggregate
// digest of the files matching a pattern changes. The digest is
// order-independent, so renames that keep content intact do not fire. The
// initial digest is the empty string, so the first scan always fires.
// Callbacks run on the watcher's own goroutine and therefore never overlap.
type DirWatcher struct {
	dir      string
	pattern  string
	interval time.Duration
	onChange func()

	lastDigest string
	stopCh     chan struct{}
	doneCh     chan struct{}
	logger     zerolog.Logger
}

// New creates a watcher over dir for files matching pattern. A non-positive
// interval falls back to DefaultInterval.
func New(dir, pattern string, interval time.Duration, onChange func()) *DirWatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &DirWatcher{
		dir:      dir,
		pattern:  pattern,
		interval: interval,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   log.WithComponent("watcher"),
	}
}

// Start begins the polling loop
func (w *DirWatcher) Start() {
	go w.run()
}

// Stop stops the watcher and waits for an in-flight callback to finish.
func (w *DirWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *DirWatcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First scan fires immediately: the initial digest is empty.
	w.poll()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.stopCh:
			return
		}
	}
}

func (w *DirWatcher) poll() {
	digest, err := Digest(w.dir, w.pattern)
	if err != nil {
		w.logger.Error().Err(err).Str("dir", w.dir).Msg("directory scan failed")
		return
	}
	if digest == w.lastDigest {
		return
	}

	w.logger.Debug().Str("dir", w.dir).Str("digest", digest).Msg("directory contents changed")
	w.lastDigest = digest
	w.onChange()
}

// Digest computes an order-independent digest over the contents of the files
// in dir matching pattern. An unreadable directory is treated as empty.
func Digest(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("bad watch pattern %q: %w", pattern, err)
	}

	fileDigests := make([]string, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted between glob and read
			}
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		fileDigests = append(fileDigests, hex.EncodeToString(sum[:]))
	}
	sort.Strings(fileDigests)

	sum := sha256.Sum256([]byte(strings.Join(fileDigests, "\n")))
	return hex.EncodeToString(sum[:]), nil
}
