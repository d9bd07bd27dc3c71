package collector

import (
	"context"
	"errors"
	"fmt"

	"match-snapshots/internal/extract"
	"match-snapshots/internal/logging"
	"match-snapshots/internal/progress"
	"match-snapshots/internal/storage"

	"github.com/sirupsen/logrus"
)

const replayBatchSize = 100

// ReplayStats counts what a replay did.
type ReplayStats struct {
	Records      int
	Skipped      int // already in the store, or repeated in the archive
	Matches      int
	SnapshotRows int
	MetadataRows int
}

// Replay re-derives rows from a raw archive and appends them to store,
// leaving out matches the store already has. It needs no API access, so
// changed extraction options can be applied to past collections.
func Replay(ctx context.Context, store progress.Store, archiveDir string, opts extract.Options, log logrus.FieldLogger) (ReplayStats, error) {
	if log == nil {
		log = logging.Discard()
	}
	var stats ReplayStats

	processed, err := store.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load progress: %w", err)
	}

	var batch progress.Batch
	appendBatch := func() error {
		if batch.Empty() {
			return nil
		}
		if err := store.Append(ctx, batch); err != nil {
			return fmt.Errorf("append replayed batch: %w", err)
		}
		batch = progress.Batch{}
		return nil
	}

	err = storage.Walk(archiveDir, func(rec *storage.RawMatch) error {
		if ctx.Err() != nil {
			return storage.ErrStop
		}
		stats.Records++
		if _, ok := processed[rec.MatchID]; ok || rec.MatchID == "" {
			stats.Skipped++
			return nil
		}
		processed[rec.MatchID] = struct{}{}

		snaps := extract.Snapshots(rec.Details, rec.Timeline, opts)
		meta, err := extract.Metadata(rec.Details, opts)
		switch {
		case err == nil:
			batch.Metadata = append(batch.Metadata, meta)
		case errors.Is(err, extract.ErrMalformed):
			log.Warnf("[Replay] %s: %v", rec.MatchID, err)
		default:
			log.Debugf("[Replay] %s: no metadata row: %v", rec.MatchID, err)
		}
		batch.Snapshots = append(batch.Snapshots, snaps...)
		batch.MatchIDs = append(batch.MatchIDs, rec.MatchID)

		stats.Matches++
		stats.SnapshotRows += len(snaps)
		if err == nil {
			stats.MetadataRows++
		}

		if len(batch.MatchIDs) >= replayBatchSize {
			return appendBatch()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := appendBatch(); err != nil {
		return stats, err
	}

	log.Infof("[Replay] %d records read, %d matches added, %d skipped", stats.Records, stats.Matches, stats.Skipped)
	return stats, ctx.Err()
}
