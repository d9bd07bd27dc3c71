package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"match-snapshots/internal/config"
	"match-snapshots/internal/riot"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestPlayersFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.txt")
	entries := []riot.LeagueEntry{
		{PUUID: "puuid-1", LeaguePoints: 1500},
		{PUUID: ""},
		{PUUID: "puuid-2", LeaguePoints: 1200},
	}
	if err := writePlayersFile(path, entries); err != nil {
		t.Fatalf("writePlayersFile: %v", err)
	}

	pool, err := readPlayersFile(path)
	if err != nil {
		t.Fatalf("readPlayersFile: %v", err)
	}
	if len(pool) != 2 || pool[0].PUUID != "puuid-1" || pool[1].PUUID != "puuid-2" {
		t.Errorf("unexpected pool %+v", pool)
	}
}

func TestReadPlayersFile_CommentsAndDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.txt")
	content := "# exported ladder\n\npuuid-1\npuuid-1\t1500 LP\n  puuid-2  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pool, err := readPlayersFile(path)
	if err != nil {
		t.Fatalf("readPlayersFile: %v", err)
	}
	if len(pool) != 2 {
		t.Errorf("expected 2 unique players, got %+v", pool)
	}
}

func TestReadPlayersFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPlayersFile(path); err == nil {
		t.Error("expected error for a file without puuids")
	}
	if _, err := readPlayersFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestBindFlags_OnlyChangedFlags(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	fs := pflag.NewFlagSet("collect", pflag.ContinueOnError)
	fs.String("tier", "challenger", "")
	fs.String("players-file", "fallback.txt", "")
	fs.String("unrelated", "", "")
	if err := fs.Parse([]string{"--tier", "master", "--unrelated", "x"}); err != nil {
		t.Fatal(err)
	}

	if err := bindFlags(fs, v); err != nil {
		t.Fatalf("bindFlags: %v", err)
	}
	if got := v.GetString(config.KeyTier); got != "master" {
		t.Errorf("expected changed flag bound, got tier %q", got)
	}
	if got := v.GetString(config.KeyPlayersFile); got != "" {
		t.Errorf("unchanged flag default leaked into config: %q", got)
	}
	if v.IsSet("unrelated") {
		t.Error("unmapped flag reached viper")
	}
}

func TestPrintLadder(t *testing.T) {
	var buf bytes.Buffer
	printLadder(&buf, "Ahri's Legion", []riot.LeagueEntry{
		{PUUID: "abcdefghijklmnopqrstuvwxyz", Tier: "CHALLENGER", LeaguePoints: 1500, Wins: 60, Losses: 40},
		{PUUID: "short", Tier: "CHALLENGER", LeaguePoints: 900},
	})

	out := buf.String()
	if !strings.Contains(out, "Ahri's Legion: 2 players") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "abcdefghijklmnop...") {
		t.Errorf("expected shortened puuid:\n%s", out)
	}
	if !strings.Contains(out, "60.0") || !strings.Contains(out, "0.0") {
		t.Errorf("expected win rates:\n%s", out)
	}
}
