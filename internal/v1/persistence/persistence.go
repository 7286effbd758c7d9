// Package persistence implements the Persistence Adapter (spec §4.7):
// save/get/list of GameConfig content packs. Two backends are offered —
// filesystem and a Redis-backed document store — selected by
// config.Config.PersistenceBackend (spec §6.4 persistence_backend),
// grounded on the teacher's Redis-backed bus.Service (internal/v1/bus)
// for the document-store variant and on plain os/io for the filesystem one.
package persistence

import (
	"context"
	"sort"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
)

// Summary is one entry of the Persistence Adapter's list() operation (spec
// §4.7, §6.2 GET /api/games/list).
type Summary struct {
	ID        string            `json:"id"`
	CreatedAt int64             `json:"createdAt"`
	Metadata  game.GameMetadata `json:"metadata"`
	Filename  string            `json:"filename,omitempty"`
}

// Backend is the Persistence Adapter's contract (spec §4.7): save is
// durable before the core acknowledges, get is read-your-writes, list is
// ordered by created_at descending with ties broken by id.
type Backend interface {
	Save(ctx context.Context, cfg game.GameConfig) error
	Get(ctx context.Context, id string) (*game.GameConfig, error)
	List(ctx context.Context) ([]Summary, error)
}

// sortSummaries orders by created_at descending, ties broken by id
// ascending (spec §4.7).
func sortSummaries(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt != summaries[j].CreatedAt {
			return summaries[i].CreatedAt > summaries[j].CreatedAt
		}
		return summaries[i].ID < summaries[j].ID
	})
}
