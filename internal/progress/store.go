// Package progress persists which matches have been collected along with
// the rows derived from them, so an interrupted run can resume.
//
// Every backend is append-only. Processed match IDs only ever grow, and a
// batch's rows are durable no later than its IDs.
package progress

import (
	"context"
	"fmt"
	"strings"

	"match-snapshots/internal/extract"
)

// Batch is one flush worth of collected matches.
type Batch struct {
	MatchIDs  []string
	Snapshots []extract.SnapshotRow
	Metadata  []extract.MetadataRow
}

// Empty reports whether the batch carries nothing to write.
func (b Batch) Empty() bool {
	return len(b.MatchIDs) == 0 && len(b.Snapshots) == 0 && len(b.Metadata) == 0
}

// Store is a durable record of processed matches and their rows.
type Store interface {
	// Load returns every match ID recorded so far.
	Load(ctx context.Context) (map[string]struct{}, error)
	// Append persists the batch. It must not return until the data is durable.
	Append(ctx context.Context, b Batch) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendLibSQL   = "libsql"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// File backend.
	ProgressFile  string
	SnapshotsFile string
	MetadataFile  string

	// SQL backends. DSN is a file path for sqlite, a libsql:// or https://
	// URL for libsql and a postgres:// URL for postgres.
	DSN       string
	AuthToken string
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(opts.ProgressFile, opts.SnapshotsFile, opts.MetadataFile), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.DSN)
	case BackendLibSQL:
		return NewLibSQLStore(ctx, opts.DSN, opts.AuthToken)
	case BackendPostgres:
		return NewPGStore(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("progress: unknown backend %q", opts.Backend)
	}
}
