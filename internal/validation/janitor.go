package validation

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes cached validator artifacts that have not
// been touched within the TTL. A removed artifact is re-fetched on the next
// load.
type Janitor interface {
	Start()
	Stop()
}

type janitor struct {
	log    *zap.Logger
	dir    string
	ttl    time.Duration
	ticker *time.Ticker
	quit   chan struct{}
	once   sync.Once
}

// NewJanitor creates a Janitor sweeping dir every interval.
func NewJanitor(dir string, ttl, interval time.Duration, log *zap.Logger) Janitor {
	return &janitor{
		log:    log,
		dir:    dir,
		ttl:    ttl,
		ticker: time.NewTicker(interval),
		quit:   make(chan struct{}),
	}
}

// Start runs the periodic sweep until Stop is called.
func (j *janitor) Start() {
	for {
		select {
		case <-j.ticker.C:
			j.sweep()
		case <-j.quit:
			j.ticker.Stop()
			return
		}
	}
}

// Stop signals the janitor to shut down.
func (j *janitor) Stop() {
	j.once.Do(func() { close(j.quit) })
}

func (j *janitor) sweep() {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.log.Warn("validator cache sweep failed", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-j.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			j.log.Warn("failed to remove stale validator artifact",
				zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.log.Info("pruned stale validator artifacts", zap.Int("removed", removed))
	}
}
