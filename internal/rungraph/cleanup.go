package rungraph

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// cleanupChunkSize bounds how many records Cleanup deletes per scan pass
// before yielding, so a large backlog of expired runs never stalls the
// writer goroutine for an extended stretch.
const cleanupChunkSize = 64

// cleanupLoop runs Cleanup on a fixed timer until ctx is cancelled or Stop
// is called.
func (g *Graph) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCleanup:
			return
		case <-ticker.C:
			if err := g.Cleanup(ctx, 24*time.Hour); err != nil {
				log.Warn().Err(err).Msg("rungraph: cleanup pass failed")
			}
		}
	}
}

// Cleanup removes terminal run records whose UpdatedAt is older than ttl.
// It scans the index, then deletes matches in bounded chunks on the
// writer goroutine (via exec), yielding between chunks so long-running cleanups never
// starve ordinary command traffic. The disk store is only touched for
// records actually removed.
func (g *Graph) Cleanup(ctx context.Context, ttl time.Duration) error {
	cutoff := time.Now().Add(-ttl)

	g.mu.RLock()
	var expired []string
	for id, rec := range g.index {
		if rec.Status.Terminal() && rec.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	g.mu.RUnlock()

	if len(expired) == 0 {
		return nil
	}

	removed := 0
	for start := 0; start < len(expired); start += cleanupChunkSize {
		end := start + cleanupChunkSize
		if end > len(expired) {
			end = len(expired)
		}
		chunk := expired[start:end]
		err := g.exec(ctx, func(g *Graph) error {
			g.mu.Lock()
			for _, id := range chunk {
				delete(g.index, id)
			}
			g.mu.Unlock()
			for _, id := range chunk {
				if err := g.store.Delete(ctx, []string{"runs", id}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		removed += len(chunk)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	log.Debug().Int("removed", removed).Msg("rungraph: cleanup")
	return nil
}
