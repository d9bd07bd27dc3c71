// Package extract flattens raw match-v5 details and timelines into
// checkpoint snapshot rows and per-match metadata rows.
//
// Inputs are treated as opaque JSON. Anything missing or malformed yields
// no rows; nothing in this package panics on bad input.
package extract

// DefaultMinutes are the checkpoint minutes snapshotted for each match.
var DefaultMinutes = []int{10, 15, 20, 25}

// DefaultQueue is ranked solo/duo.
const DefaultQueue = 420

// Team IDs used by match-v5 for the two sides of the map.
const (
	TeamBlue = 100
	TeamRed  = 200
)

// UnknownLane is reported when the best player has no teamPosition.
const UnknownLane = "UNKNOWN"

// Options controls extraction.
type Options struct {
	Minutes []int
	Queue   int
	// FilterMetadataByQueue drops metadata rows for matches outside Queue.
	FilterMetadataByQueue bool
}

// DefaultOptions returns the ranked solo/duo checkpoint setup.
func DefaultOptions() Options {
	return Options{
		Minutes:               append([]int(nil), DefaultMinutes...),
		Queue:                 DefaultQueue,
		FilterMetadataByQueue: true,
	}
}
