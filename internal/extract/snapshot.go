package extract

import (
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	eventBuildingKill = "BUILDING_KILL"
	eventMonsterKill  = "ELITE_MONSTER_KILL"
	buildingTower     = "TOWER_BUILDING"
	monsterDragon     = "DRAGON"
)

// Snapshots derives one row per checkpoint minute the match lasted to.
// Matches outside opts.Queue produce nothing. A minute m is emitted only
// when the timeline has frame m and every participant frame in it is
// complete. Tower and dragon diffs count kills in frames 0 through m.
func Snapshots(details, timeline []byte, opts Options) []SnapshotRow {
	if !gjson.ValidBytes(details) || !gjson.ValidBytes(timeline) {
		return nil
	}
	info := gjson.GetBytes(details, "info")
	if !info.IsObject() || !queueMatches(info, opts.Queue) {
		return nil
	}

	teams := info.Get("teams")
	blue, ok := findTeam(teams, TeamBlue)
	if !ok {
		return nil
	}
	if _, ok := findTeam(teams, TeamRed); !ok {
		return nil
	}
	roster, ok := rosterOf(info)
	if !ok {
		return nil
	}

	frames := gjson.GetBytes(timeline, "info.frames").Array()
	if len(frames) == 0 {
		return nil
	}

	matchID := gjson.GetBytes(details, "metadata.matchId").String()
	patch := info.Get("gameVersion").String()
	finalWin := 0
	if blue.Get("win").Bool() {
		finalWin = 1
	}

	objectives := cumulativeObjectives(frames, roster)

	var rows []SnapshotRow
	for _, minute := range opts.Minutes {
		if minute < 0 || minute > len(frames)-1 {
			continue
		}
		totals, ok := frameTotals(frames[minute], roster)
		if !ok {
			continue
		}
		obj := objectives[minute]
		rows = append(rows, SnapshotRow{
			MatchID:    matchID,
			Patch:      patch,
			Minute:     minute,
			GoldDiff:   totals[TeamBlue].gold - totals[TeamRed].gold,
			XPDiff:     totals[TeamBlue].xp - totals[TeamRed].xp,
			CSDiff:     totals[TeamBlue].cs - totals[TeamRed].cs,
			TowerDiff:  obj[TeamBlue].towers - obj[TeamRed].towers,
			DragonDiff: obj[TeamBlue].dragons - obj[TeamRed].dragons,
			FinalWin:   finalWin,
		})
	}
	return rows
}

type teamTotals struct {
	gold, xp, cs int
}

type objectiveCounts struct {
	towers, dragons int
}

// frameTotals sums gold, xp and cs per team for one frame.
func frameTotals(frame gjson.Result, roster map[int]int) (map[int]teamTotals, bool) {
	pf := frame.Get("participantFrames")
	if !pf.IsObject() {
		return nil, false
	}
	totals := map[int]teamTotals{TeamBlue: {}, TeamRed: {}}
	for pid, team := range roster {
		p := pf.Get(strconv.Itoa(pid))
		if !p.IsObject() {
			return nil, false
		}
		gold, ok1 := intField(p, "totalGold")
		xp, ok2 := intField(p, "xp")
		minions, ok3 := intField(p, "minionsKilled")
		jungle, ok4 := intField(p, "jungleMinionsKilled")
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, false
		}
		t := totals[team]
		t.gold += gold
		t.xp += xp
		t.cs += minions + jungle
		totals[team] = t
	}
	return totals, true
}

// cumulativeObjectives returns, for each frame index i, the tower and dragon
// kills per team over frames 0..i.
func cumulativeObjectives(frames []gjson.Result, roster map[int]int) []map[int]objectiveCounts {
	out := make([]map[int]objectiveCounts, len(frames))
	running := map[int]objectiveCounts{TeamBlue: {}, TeamRed: {}}

	for i, frame := range frames {
		frame.Get("events").ForEach(func(_, e gjson.Result) bool {
			team, ok := roster[int(e.Get("killerId").Int())]
			if !ok {
				return true
			}
			c := running[team]
			switch e.Get("type").String() {
			case eventBuildingKill:
				if e.Get("buildingType").String() == buildingTower {
					c.towers++
				}
			case eventMonsterKill:
				if e.Get("monsterType").String() == monsterDragon {
					c.dragons++
				}
			}
			running[team] = c
			return true
		})
		out[i] = map[int]objectiveCounts{
			TeamBlue: running[TeamBlue],
			TeamRed:  running[TeamRed],
		}
	}
	return out
}

// rosterOf maps participantId to teamId for players on teams 100 and 200.
func rosterOf(info gjson.Result) (map[int]int, bool) {
	participants := info.Get("participants")
	if !participants.IsArray() {
		return nil, false
	}
	roster := make(map[int]int)
	valid := true
	participants.ForEach(func(_, p gjson.Result) bool {
		pid, ok1 := intField(p, "participantId")
		team, ok2 := intField(p, "teamId")
		if !ok1 || !ok2 {
			valid = false
			return false
		}
		if team == TeamBlue || team == TeamRed {
			roster[pid] = team
		}
		return true
	})
	if !valid || len(roster) == 0 {
		return nil, false
	}
	return roster, true
}

func findTeam(teams gjson.Result, id int) (gjson.Result, bool) {
	var found gjson.Result
	ok := false
	teams.ForEach(func(_, t gjson.Result) bool {
		if tid, has := intField(t, "teamId"); has && tid == id {
			found, ok = t, true
			return false
		}
		return true
	})
	return found, ok
}

func queueMatches(info gjson.Result, queue int) bool {
	if queue <= 0 {
		return true
	}
	q, ok := intField(info, "queueId")
	return ok && q == queue
}

func intField(r gjson.Result, path string) (int, bool) {
	v := r.Get(path)
	if v.Type != gjson.Number {
		return 0, false
	}
	return int(v.Int()), true
}
