package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"match-snapshots/internal/riot"

	"github.com/spf13/cobra"
)

var ladderCmd = &cobra.Command{
	Use:   "ladder",
	Short: "Print an apex-tier ladder",
	Long: `Fetches the challenger, grandmaster or master ladder and prints one line per
player, highest LP first. With --output the puuids are also written to a file
that collect --players-file can read back.`,
	RunE: runLadder,
}

var ladderOutput string

func init() {
	f := ladderCmd.Flags()
	f.String("tier", "challenger", "ladder to fetch: challenger, grandmaster or master")
	f.StringVarP(&ladderOutput, "output", "o", "", "write puuids to this file")
}

func runLadder(cmd *cobra.Command, _ []string) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key not set")
	}
	tier, err := riot.ParseTier(cfg.Tier)
	if err != nil {
		return err
	}
	client, err := riot.NewClient(cfg.ClientConfig(), log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ladder, err := client.GetLadder(ctx, tier, cfg.QueueType)
	if err != nil {
		return fmt.Errorf("fetching %s ladder: %w", tier, err)
	}

	entries := ladder.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LeaguePoints > entries[j].LeaguePoints
	})
	printLadder(cmd.OutOrStdout(), ladder.Name, entries)

	if ladderOutput != "" {
		if err := writePlayersFile(ladderOutput, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %d puuids to %s\n", len(entries), ladderOutput)
	}
	return nil
}

func printLadder(w io.Writer, name string, entries []riot.LeagueEntry) {
	fmt.Fprintf(w, "%s: %d players\n\n", name, len(entries))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPUUID\tTIER\tLP\tW\tL\tWIN%")
	for i, e := range entries {
		games := e.Wins + e.Losses
		winRate := 0.0
		if games > 0 {
			winRate = float64(e.Wins) / float64(games) * 100
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%.1f\n",
			i+1, riot.ShortPUUID(e.PUUID), e.Tier, e.LeaguePoints, e.Wins, e.Losses, winRate)
	}
	tw.Flush()
}

// writePlayersFile writes the format readPlayersFile reads: the puuid, a tab,
// then the LP as a comment for humans.
func writePlayersFile(path string, entries []riot.LeagueEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		if e.PUUID == "" {
			continue
		}
		fmt.Fprintf(w, "%s\t%d LP\n", e.PUUID, e.LeaguePoints)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
