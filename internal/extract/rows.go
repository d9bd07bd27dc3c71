package extract

import "strconv"

// SnapshotRow holds team 100 minus team 200 differentials at one minute.
type SnapshotRow struct {
	MatchID    string
	Patch      string
	Minute     int
	GoldDiff   int
	XPDiff     int
	CSDiff     int
	TowerDiff  int
	DragonDiff int
	FinalWin   int // 1 when team 100 won
}

// SnapshotHeader is the CSV header for SnapshotRow.
var SnapshotHeader = []string{
	"match_id", "patch", "minute", "gold_diff", "xp_diff",
	"cs_diff", "tower_diff", "dragon_diff", "final_win",
}

// Record renders the row in SnapshotHeader order.
func (r SnapshotRow) Record() []string {
	return []string{
		r.MatchID,
		r.Patch,
		strconv.Itoa(r.Minute),
		strconv.Itoa(r.GoldDiff),
		strconv.Itoa(r.XPDiff),
		strconv.Itoa(r.CSDiff),
		strconv.Itoa(r.TowerDiff),
		strconv.Itoa(r.DragonDiff),
		strconv.Itoa(r.FinalWin),
	}
}

// MetadataRow summarises one match from the winning side's point of view.
type MetadataRow struct {
	MatchID     string
	Patch       string
	WinningTeam int
	BaronDiff   int
	DragonDiff  int
	TowerDiff   int
	BestChamp   string
	BestLane    string
}

// MetadataHeader is the CSV header for MetadataRow.
var MetadataHeader = []string{
	"match_id", "patch", "winning_team", "baron_diff",
	"dragon_diff", "tower_diff", "best_champ", "best_lane",
}

// Record renders the row in MetadataHeader order.
func (r MetadataRow) Record() []string {
	return []string{
		r.MatchID,
		r.Patch,
		strconv.Itoa(r.WinningTeam),
		strconv.Itoa(r.BaronDiff),
		strconv.Itoa(r.DragonDiff),
		strconv.Itoa(r.TowerDiff),
		r.BestChamp,
		r.BestLane,
	}
}
