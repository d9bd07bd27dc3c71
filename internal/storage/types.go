package storage

import (
	"time"

	json "github.com/goccy/go-json"
)

// RawMatch is one archived match: the untouched API payloads plus enough
// context to tell which run collected them. One JSONL line per match.
type RawMatch struct {
	RunID       string          `json:"runId"`
	MatchID     string          `json:"matchId"`
	CollectedAt time.Time       `json:"collectedAt"`
	Details     json.RawMessage `json:"details"`
	Timeline    json.RawMessage `json:"timeline"`
}
