package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"match-snapshots/internal/collector"
	"match-snapshots/internal/notify"
	"match-snapshots/internal/progress"
	"match-snapshots/internal/riot"
	"match-snapshots/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const notifyTimeout = 15 * time.Second

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect matches until the target count is reached",
	Long: `Fetches the ladder (or reads --players-file), then walks the players in
random order collecting each new ranked match. Progress is checkpointed every
--flush-every matches; Ctrl+C stops after the current request and writes a
final checkpoint. A second Ctrl+C exits immediately.

Rows are written to the CSV files by default. With --backend sqlite, libsql
or postgres they go to a database named by --dsn instead. --archive keeps the
raw match and timeline payloads as rotating JSONL files.`,
	RunE: runCollect,
}

func init() {
	f := collectCmd.Flags()
	f.Int("target", 10000, "total processed matches to stop at")
	f.String("tier", "challenger", "ladder to sample: challenger, grandmaster or master")
	f.String("players-file", "", "read puuids from a file (one per line) instead of the ladder")
	f.Int("matches-per-player", 20, "match ids requested per player")
	f.Int("flush-every", 5, "matches buffered between checkpoints")
	f.Int("max-idle-passes", 0, "stop after this many passes that collect nothing (0 = never)")
	f.Int("queue", 420, "queue id to collect")
	f.String("minutes", "10,15,20,25", "snapshot minutes, comma separated")
	f.String("backend", "file", "progress store: file, sqlite, libsql or postgres")
	f.String("dsn", "", "database path or URL for SQL backends")
	f.String("progress", "", "processed match id file (file backend)")
	f.String("snapshots", "", "snapshot CSV (file backend)")
	f.String("metadata", "", "metadata CSV (file backend)")
	f.String("archive", "", "directory for raw JSONL archives (empty disables)")
	f.String("webhook-url", "", "Discord webhook for run notifications")
}

func runCollect(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tier, _ := riot.ParseTier(cfg.Tier)

	runID := uuid.NewString()
	runLog := log.WithField("run", runID)
	notifier := notify.BestEffort{Notifier: notify.New(cfg.WebhookURL), Log: runLog}

	ctx, cancel := collector.SetupSignalHandler(cmd.Context(), runLog, nil)
	defer cancel()

	if err := preflightKey(ctx); err != nil {
		abort(notifier, notify.RunResult{RunID: runID, Target: cfg.Target}, err)
		return err
	}

	store, err := progress.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening progress store: %w", err)
	}
	defer store.Close()

	processed, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading progress: %w", err)
	}
	if len(processed) >= cfg.Target {
		fmt.Printf("Already have %d of %d matches, nothing to do\n", len(processed), cfg.Target)
		return nil
	}

	client, err := riot.NewClient(cfg.ClientConfig(), runLog)
	if err != nil {
		return err
	}

	pool, source, err := loadPool(ctx, client, tier)
	if err != nil {
		abort(notifier, notify.RunResult{RunID: runID, Total: len(processed), Target: cfg.Target}, err)
		return err
	}
	runLog.Infof("Player pool: %d players from %s", len(pool), source)

	ccfg := collector.Config{
		MatchesPerPlayer: cfg.MatchesPerPlayer,
		FlushEvery:       cfg.FlushEvery,
		MaxIdlePasses:    cfg.MaxIdlePasses,
		Extract:          cfg.ExtractOptions(),
		RunID:            runID,
	}
	if cfg.ArchiveDir != "" {
		rotator, err := storage.NewFileRotator(cfg.ArchiveDir, cfg.RotatorConfig(), runLog)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer rotator.Close()
		ccfg.Archive = rotator
		runLog.Infof("Archiving raw payloads under %s", cfg.ArchiveDir)
	}

	notifyCtx, cancelNotify := context.WithTimeout(ctx, notifyTimeout)
	notifier.RunStarted(notifyCtx, notify.RunStart{
		RunID:    runID,
		Tier:     source,
		Players:  len(pool),
		Restored: len(processed),
		Target:   cfg.Target,
	})
	cancelNotify()

	start := time.Now()
	c := collector.New(client, store, ccfg, runLog)
	collected, runErr := c.Run(ctx, cfg.Target, pool)

	stats := c.Stats()
	result := notify.RunResult{
		RunID:     runID,
		Collected: collected,
		Total:     stats.Restored + stats.Collected,
		Target:    cfg.Target,
		Failed:    stats.FailedMatches,
		Runtime:   time.Since(start),
	}
	if runErr != nil {
		abort(notifier, result, runErr)
		return runErr
	}

	finishCtx, cancelFinish := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancelFinish()
	notifier.RunFinished(finishCtx, result)
	return nil
}

// preflightKey rejects a key the API refuses before the run starts. When
// validity cannot be determined the run goes ahead; the client retries.
func preflightKey(ctx context.Context) error {
	status, err := riot.NewKeyChecker(cfg.PlatformURL, 0).Check(ctx, cfg.APIKey)
	if err != nil {
		log.Warnf("Could not validate API key, continuing: %v", err)
		return nil
	}
	if !status.Accepted {
		return fmt.Errorf("API key rejected by the Riot API with status %d (expired or revoked?)", status.StatusCode)
	}
	if status.Maintenances+status.Incidents > 0 {
		log.Warnf("Platform %s reports %d maintenances and %d incidents", status.Platform, status.Maintenances, status.Incidents)
	}
	return nil
}

// loadPool returns the players to walk and a label for where they came from.
func loadPool(ctx context.Context, client *riot.Client, tier riot.LadderTier) ([]riot.LeagueEntry, string, error) {
	if cfg.PlayersFile != "" {
		pool, err := readPlayersFile(cfg.PlayersFile)
		if err != nil {
			return nil, "", err
		}
		return pool, cfg.PlayersFile, nil
	}

	ladder, err := client.GetLadder(ctx, tier, cfg.QueueType)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s ladder: %w", tier, err)
	}
	return ladder.Entries, strings.ToUpper(string(tier)), nil
}

// readPlayersFile reads one puuid per line. Blank lines and lines starting
// with # are ignored, as is anything after the first tab.
func readPlayersFile(path string) ([]riot.LeagueEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening players file: %w", err)
	}
	defer f.Close()

	var pool []riot.LeagueEntry
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		puuid := strings.TrimSpace(strings.SplitN(line, "\t", 2)[0])
		if _, dup := seen[puuid]; dup {
			continue
		}
		seen[puuid] = struct{}{}
		pool = append(pool, riot.LeagueEntry{PUUID: puuid})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading players file: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("players file %s has no puuids", path)
	}
	return pool, nil
}

func abort(n notify.Notifier, r notify.RunResult, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	n.RunAborted(ctx, r, err.Error())
}
