// Package collector walks a player pool, fetching each new ranked match and
// turning it into snapshot and metadata rows, with periodic checkpoints so
// an interrupted run resumes where it left off.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"match-snapshots/internal/extract"
	"match-snapshots/internal/logging"
	"match-snapshots/internal/progress"
	"match-snapshots/internal/riot"
	"match-snapshots/internal/storage"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMatchesPerPlayer = 20
	DefaultFlushEvery       = 5

	flushTimeout = 30 * time.Second
)

var (
	// ErrEmptyPool is returned by Run when no player in the pool has a puuid.
	ErrEmptyPool = errors.New("collector: player pool is empty")
	// ErrKeyRejected is returned by Run when the API answers 401 or 403.
	// Every later request would fail the same way, so the run stops after
	// checkpointing what it already has.
	ErrKeyRejected = errors.New("collector: API key rejected")
)

// API is the part of the Riot client the collector drives.
type API interface {
	GetMatchIDs(ctx context.Context, puuid string, count, queue int) ([]string, error)
	GetMatch(ctx context.Context, matchID string) ([]byte, error)
	GetTimeline(ctx context.Context, matchID string) ([]byte, error)
}

// Archiver keeps the raw payloads of collected matches.
type Archiver interface {
	Write(rec *storage.RawMatch) error
}

// Config holds collector settings. Zero values take the defaults.
type Config struct {
	MatchesPerPlayer int // K, IDs requested per player
	FlushEvery       int // M, matches buffered before a checkpoint
	// MaxIdlePasses stops the run after this many consecutive passes over
	// the pool collect nothing. 0 keeps cycling until the target.
	MaxIdlePasses int
	Extract       extract.Options
	RunID         string
	Rand          *rand.Rand
	Archive       Archiver  // optional
	Out           io.Writer // summary output, default os.Stdout
}

// Stats counts what a run did.
type Stats struct {
	Restored       int
	Collected      int
	FailedMatches  int
	PlayersSkipped int
	NoWinner       int
	QueueMismatch  int
	SnapshotRows   int
	MetadataRows   int
	Flushes        int
	Passes         int
	ArchiveErrors  int
}

// Collector runs one collection session against a single shared client.
type Collector struct {
	api   API
	store progress.Store
	cfg   Config
	log   logrus.FieldLogger

	stateMachine *StateMachine
	seen         *SeenSet
	failed       *FailedSet
	buf          progress.Batch
	stats        Stats
	startTime    time.Time
}

// New creates a collector. The store must already be open.
func New(api API, store progress.Store, cfg Config, log logrus.FieldLogger) *Collector {
	if cfg.MatchesPerPlayer <= 0 {
		cfg.MatchesPerPlayer = DefaultMatchesPerPlayer
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if len(cfg.Extract.Minutes) == 0 && cfg.Extract.Queue == 0 {
		cfg.Extract = extract.DefaultOptions()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if log == nil {
		log = logging.Discard()
	}

	c := &Collector{
		api:          api,
		store:        store,
		cfg:          cfg,
		log:          log.WithField("component", "collector"),
		stateMachine: NewStateMachine(),
	}
	c.stateMachine.OnTransition(func(from, to State) {
		c.log.Debugf("State transition: %s -> %s", from, to)
	})
	return c
}

// State returns the current state.
func (c *Collector) State() State {
	return c.stateMachine.Current()
}

// Stats returns a copy of the run counters.
func (c *Collector) Stats() Stats {
	return c.stats
}

// Run collects until target matches are recorded in the store, counting
// ones restored from earlier runs. It returns how many matches this run
// added. Cancelling ctx stops the run after a final flush; the error is
// then nil. A rejected API key also flushes before returning
// ErrKeyRejected. A store failure aborts the run.
func (c *Collector) Run(ctx context.Context, target int, pool []riot.LeagueEntry) (int, error) {
	if !hasPlayers(pool) {
		return 0, ErrEmptyPool
	}
	c.startTime = time.Now()

	processed, err := c.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	c.seen = NewSeenSet(uint(target + len(processed)))
	c.seen.AddAll(processed)
	c.failed = NewFailedSet(uint(target))
	c.stats.Restored = c.seen.Len()
	c.log.Infof("Restored %d processed matches, target %d", c.stats.Restored, target)

	order := make([]riot.LeagueEntry, len(pool))
	copy(order, pool)

	idlePasses := 0
	for c.seen.Len() < target && ctx.Err() == nil {
		c.shuffle(order)
		c.stats.Passes++
		before := c.stats.Collected

		if err := c.runPass(ctx, target, order); err != nil {
			if errors.Is(err, ErrKeyRejected) {
				c.log.Errorf("Aborting run: %v", err)
				if ferr := c.finish(ctx); ferr != nil {
					return c.stats.Collected, errors.Join(err, ferr)
				}
			}
			return c.stats.Collected, err
		}

		if c.stats.Collected == before {
			idlePasses++
			c.log.Warnf("Pass %d over %d players found nothing new", c.stats.Passes, len(order))
			if c.cfg.MaxIdlePasses > 0 && idlePasses >= c.cfg.MaxIdlePasses {
				c.log.Warnf("Stopping after %d idle passes", idlePasses)
				break
			}
		} else {
			idlePasses = 0
		}
	}

	if ctx.Err() != nil {
		c.log.Info("Interrupted, writing final checkpoint")
	}
	if err := c.finish(ctx); err != nil {
		return c.stats.Collected, err
	}
	c.printSummary(target)
	return c.stats.Collected, nil
}

// runPass visits every player once. Only store failures and a rejected
// key are returned.
func (c *Collector) runPass(ctx context.Context, target int, order []riot.LeagueEntry) error {
	for _, entry := range order {
		if ctx.Err() != nil || c.seen.Len() >= target {
			return nil
		}
		if entry.PUUID == "" {
			c.stats.PlayersSkipped++
			continue
		}

		c.transition(StateDiscovering)
		ids, err := c.api.GetMatchIDs(ctx, entry.PUUID, c.cfg.MatchesPerPlayer, c.cfg.Extract.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if riot.IsAuthError(err) {
				return fmt.Errorf("%w: %v", ErrKeyRejected, err)
			}
			c.log.Warnf("Failed to list matches for %s: %v (skipping)", riot.ShortPUUID(entry.PUUID), err)
			c.stats.PlayersSkipped++
			continue
		}
		if len(ids) == 0 {
			c.stats.PlayersSkipped++
			continue
		}

		c.transition(StateFetching)
		for _, id := range ids {
			if ctx.Err() != nil || c.seen.Len() >= target {
				return nil
			}
			if c.seen.Has(id) {
				continue
			}
			if c.failed.Has(id) {
				continue
			}

			if err := c.collectMatch(ctx, id); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if riot.IsAuthError(err) {
					return fmt.Errorf("%w: %v", ErrKeyRejected, err)
				}
				c.failed.Add(id)
				c.stats.FailedMatches++
				c.log.Warnf("Skipping match %s (status %d): %v", id, riot.StatusCode(err), err)
				continue
			}

			elapsed := time.Since(c.startTime)
			c.log.Infof("[%d/%d] [%s] Collected match %s", c.seen.Len(), target, formatDuration(elapsed), id)

			if len(c.buf.MatchIDs) >= c.cfg.FlushEvery {
				c.transition(StateFlushing)
				if err := c.flush(ctx); err != nil {
					return err
				}
				c.transition(StateFetching)
			}
		}
	}
	return nil
}

// collectMatch fetches one match, derives its rows and buffers them. The
// match is only marked seen once both payloads arrived.
func (c *Collector) collectMatch(ctx context.Context, id string) error {
	details, err := c.api.GetMatch(ctx, id)
	if err != nil {
		return fmt.Errorf("details: %w", err)
	}
	timeline, err := c.api.GetTimeline(ctx, id)
	if err != nil {
		return fmt.Errorf("timeline: %w", err)
	}

	snaps := extract.Snapshots(details, timeline, c.cfg.Extract)
	meta, err := extract.Metadata(details, c.cfg.Extract)
	switch {
	case err == nil:
		c.buf.Metadata = append(c.buf.Metadata, meta)
		c.stats.MetadataRows++
	case errors.Is(err, extract.ErrNoWinner):
		c.stats.NoWinner++
		c.log.Warnf("Match %s has no winning team, no metadata row", id)
	case errors.Is(err, extract.ErrQueueMismatch):
		c.stats.QueueMismatch++
	default:
		c.log.Debugf("Match %s: %v", id, err)
	}

	c.buf.Snapshots = append(c.buf.Snapshots, snaps...)
	c.buf.MatchIDs = append(c.buf.MatchIDs, id)
	c.stats.SnapshotRows += len(snaps)
	c.stats.Collected++
	c.seen.Add(id)

	if c.cfg.Archive != nil {
		rec := &storage.RawMatch{
			RunID:       c.cfg.RunID,
			MatchID:     id,
			CollectedAt: time.Now().UTC(),
			Details:     details,
			Timeline:    timeline,
		}
		if err := c.cfg.Archive.Write(rec); err != nil {
			c.stats.ArchiveErrors++
			c.log.Warnf("Failed to archive %s: %v", id, err)
		}
	}
	return nil
}

// flush writes the buffer detached from ctx, so an interrupt arriving
// mid-checkpoint does not abandon it.
func (c *Collector) flush(ctx context.Context) error {
	if c.buf.Empty() {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := c.store.Append(flushCtx, c.buf); err != nil {
		c.log.Errorf("Checkpoint failed: %v", err)
		return fmt.Errorf("flush progress: %w", err)
	}
	c.log.Infof("Checkpoint: %d matches, %d snapshot rows, %d metadata rows",
		len(c.buf.MatchIDs), len(c.buf.Snapshots), len(c.buf.Metadata))
	c.buf = progress.Batch{}
	c.stats.Flushes++
	return nil
}

func (c *Collector) finish(ctx context.Context) error {
	c.transition(StateFlushing)
	if err := c.flush(ctx); err != nil {
		return err
	}
	c.transition(StateDone)
	return nil
}

func (c *Collector) transition(to State) {
	if err := c.stateMachine.TransitionTo(to); err != nil {
		// Only reachable through a programming error in the run loop.
		panic(err)
	}
}

func hasPlayers(pool []riot.LeagueEntry) bool {
	for _, e := range pool {
		if e.PUUID != "" {
			return true
		}
	}
	return false
}

func (c *Collector) shuffle(order []riot.LeagueEntry) {
	c.cfg.Rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}

func (c *Collector) printSummary(target int) {
	elapsed := time.Since(c.startTime)
	s := c.stats
	w := c.cfg.Out

	fmt.Fprintf(w, "\n=== Collection Complete ===\n")
	fmt.Fprintf(w, "Total time: %s\n", formatDuration(elapsed))
	fmt.Fprintf(w, "Matches: %d collected this run, %d restored, %d/%d total\n",
		s.Collected, s.Restored, s.Restored+s.Collected, target)
	fmt.Fprintf(w, "Passes over pool: %d\n", s.Passes)
	fmt.Fprintf(w, "Skipped: %d matches failed, %d players without matches\n", s.FailedMatches, s.PlayersSkipped)
	fmt.Fprintf(w, "Rows written: %d snapshots, %d metadata\n", s.SnapshotRows, s.MetadataRows)
	if s.NoWinner > 0 {
		fmt.Fprintf(w, "Matches without a winner: %d\n", s.NoWinner)
	}
	if s.ArchiveErrors > 0 {
		fmt.Fprintf(w, "Archive write failures: %d\n", s.ArchiveErrors)
	}
	if s.Collected > 0 {
		fmt.Fprintf(w, "Avg time per match: %s\n", formatDuration(elapsed/time.Duration(s.Collected)))
		fmt.Fprintf(w, "Throughput: %.1f matches/min\n", float64(s.Collected)/elapsed.Minutes())
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
