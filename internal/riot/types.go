package riot

import (
	"fmt"
	"strings"
)

const (
	// QueueRankedSolo is the queueId of ranked solo/duo on Summoner's Rift.
	QueueRankedSolo = 420
	// QueueTypeRankedSolo is the league-v4 name of the same queue.
	QueueTypeRankedSolo = "RANKED_SOLO_5x5"
)

// LadderTier is one of the apex tiers that league-v4 lists in full.
type LadderTier string

const (
	TierChallenger  LadderTier = "challenger"
	TierGrandmaster LadderTier = "grandmaster"
	TierMaster      LadderTier = "master"
)

// ParseTier accepts the tier name in any case.
func ParseTier(s string) (LadderTier, error) {
	switch LadderTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierChallenger:
		return TierChallenger, nil
	case TierGrandmaster:
		return TierGrandmaster, nil
	case TierMaster:
		return TierMaster, nil
	default:
		return "", fmt.Errorf("unknown ladder tier %q (want challenger, grandmaster or master)", s)
	}
}

// leaguePath is the league-v4 path segment for the tier.
func (t LadderTier) leaguePath() string {
	return string(t) + "leagues"
}

// LeagueListResponse represents /lol/league/v4/{tier}leagues/by-queue/{queue}
type LeagueListResponse struct {
	LeagueID string        `json:"leagueId"`
	Tier     string        `json:"tier"`
	Name     string        `json:"name"`
	Queue    string        `json:"queue"`
	Entries  []LeagueEntry `json:"entries"`
}

// LeagueEntry is one player on the ladder.
type LeagueEntry struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId,omitempty"`
	Tier         string `json:"tier,omitempty"` // filled from the list when absent
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	Veteran      bool   `json:"veteran"`
	Inactive     bool   `json:"inactive"`
	FreshBlood   bool   `json:"freshBlood"`
	HotStreak    bool   `json:"hotStreak"`
}

// ShortPUUID trims a puuid for log lines.
func ShortPUUID(puuid string) string {
	if len(puuid) <= 16 {
		return puuid
	}
	return puuid[:16] + "..."
}
