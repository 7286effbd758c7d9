package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

// FilesystemBackend stores one JSON file per GameConfig under dir, named
// "<id>.json" (spec §6.3). Writes go through a temp file and rename so a
// reader never observes a partially-written document.
type FilesystemBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFilesystemBackend creates dir if it does not already exist.
func NewFilesystemBackend(dir string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persistence dir %s: %w", dir, err)
	}
	return &FilesystemBackend{dir: dir}, nil
}

func (b *FilesystemBackend) path(id string) string {
	return filepath.Join(b.dir, id+".json")
}

// Save writes cfg durably before returning (spec §4.7).
func (b *FilesystemBackend) Save(_ context.Context, cfg game.GameConfig) error {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("save", "filesystem", "error").Inc()
		return roomerr.Dependency("failed to encode game config", err)
	}

	tmp := b.path(cfg.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("save", "filesystem", "error").Inc()
		return roomerr.Dependency("failed to write game config", err)
	}
	if err := os.Rename(tmp, b.path(cfg.ID)); err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("save", "filesystem", "error").Inc()
		return roomerr.Dependency("failed to finalize game config", err)
	}

	metrics.PersistenceOperationDuration.WithLabelValues("save", "filesystem").Observe(time.Since(start).Seconds())
	metrics.PersistenceOperationsTotal.WithLabelValues("save", "filesystem", "ok").Inc()
	return nil
}

// Get reads a previously saved config (spec §4.7: read-your-writes).
func (b *FilesystemBackend) Get(_ context.Context, id string) (*game.GameConfig, error) {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path(id))
	if os.IsNotExist(err) {
		metrics.PersistenceOperationsTotal.WithLabelValues("get", "filesystem", "not_found").Inc()
		return nil, roomerr.NotFound("game %s not found", id)
	}
	if err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("get", "filesystem", "error").Inc()
		return nil, roomerr.Dependency("failed to read game config", err)
	}

	var cfg game.GameConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("get", "filesystem", "error").Inc()
		return nil, roomerr.Dependency("failed to decode game config", err)
	}

	metrics.PersistenceOperationDuration.WithLabelValues("get", "filesystem").Observe(time.Since(start).Seconds())
	metrics.PersistenceOperationsTotal.WithLabelValues("get", "filesystem", "ok").Inc()
	return &cfg, nil
}

// List enumerates every saved config, newest first (spec §4.7).
func (b *FilesystemBackend) List(_ context.Context) ([]Summary, error) {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		metrics.PersistenceOperationsTotal.WithLabelValues("list", "filesystem", "error").Inc()
		return nil, roomerr.Dependency("failed to list saved games", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, e.Name()))
		if err != nil {
			continue
		}
		var cfg game.GameConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			ID:        cfg.ID,
			CreatedAt: cfg.CreatedAt,
			Metadata:  cfg.Metadata,
			Filename:  e.Name(),
		})
	}
	sortSummaries(summaries)

	metrics.PersistenceOperationDuration.WithLabelValues("list", "filesystem").Observe(time.Since(start).Seconds())
	metrics.PersistenceOperationsTotal.WithLabelValues("list", "filesystem", "ok").Inc()
	return summaries, nil
}
