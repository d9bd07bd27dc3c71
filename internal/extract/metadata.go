package extract

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed means the details lacked a field the row needs.
	ErrMalformed = errors.New("extract: malformed match details")
	// ErrNoWinner means neither team is flagged as the winner.
	ErrNoWinner = errors.New("extract: match has no winning team")
	// ErrQueueMismatch means the match was played in another queue.
	ErrQueueMismatch = errors.New("extract: match outside target queue")
)

// Metadata derives the per-match row. The error is one of ErrMalformed,
// ErrNoWinner or ErrQueueMismatch when no row can be produced.
func Metadata(details []byte, opts Options) (MetadataRow, error) {
	if !gjson.ValidBytes(details) {
		return MetadataRow{}, ErrMalformed
	}
	info := gjson.GetBytes(details, "info")
	teams := info.Get("teams")
	if !info.IsObject() || !teams.IsArray() {
		return MetadataRow{}, ErrMalformed
	}
	if opts.FilterMetadataByQueue && !queueMatches(info, opts.Queue) {
		return MetadataRow{}, ErrQueueMismatch
	}

	var winner gjson.Result
	hasWinner := false
	teams.ForEach(func(_, t gjson.Result) bool {
		if t.Get("win").Bool() {
			winner, hasWinner = t, true
			return false
		}
		return true
	})
	if !hasWinner {
		return MetadataRow{}, ErrNoWinner
	}

	winID, ok := intField(winner, "teamId")
	if !ok {
		return MetadataRow{}, ErrMalformed
	}
	loseID := TeamBlue
	if winID == TeamBlue {
		loseID = TeamRed
	}
	loser, ok := findTeam(teams, loseID)
	if !ok {
		return MetadataRow{}, ErrMalformed
	}

	row := MetadataRow{
		MatchID:     gjson.GetBytes(details, "metadata.matchId").String(),
		Patch:       info.Get("gameVersion").String(),
		WinningTeam: winID,
	}
	for _, d := range []struct {
		objective string
		dst       *int
	}{
		{"baron", &row.BaronDiff},
		{"dragon", &row.DragonDiff},
		{"tower", &row.TowerDiff},
	} {
		w, ok1 := intField(winner, "objectives."+d.objective+".kills")
		l, ok2 := intField(loser, "objectives."+d.objective+".kills")
		if !ok1 || !ok2 {
			return MetadataRow{}, ErrMalformed
		}
		*d.dst = w - l
	}

	best, ok := bestDamageDealer(info.Get("participants"), winID)
	if !ok {
		return MetadataRow{}, ErrMalformed
	}
	row.BestChamp = best.Get("championName").String()
	row.BestLane = best.Get("teamPosition").String()
	if row.BestLane == "" {
		row.BestLane = UnknownLane
	}
	return row, nil
}

// bestDamageDealer picks the participant on team with the most damage to
// champions. The first one listed wins a tie.
func bestDamageDealer(participants gjson.Result, team int) (gjson.Result, bool) {
	var best gjson.Result
	bestDamage, found := 0, false
	participants.ForEach(func(_, p gjson.Result) bool {
		if tid, ok := intField(p, "teamId"); !ok || tid != team {
			return true
		}
		dmg, ok := intField(p, "totalDamageDealtToChampions")
		if !ok {
			return true
		}
		if !found || dmg > bestDamage {
			best, bestDamage, found = p, dmg, true
		}
		return true
	})
	return best, found
}
