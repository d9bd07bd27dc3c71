package progress

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"match-snapshots/internal/extract"
)

// Default file names, relative to the working directory.
const (
	DefaultProgressFile  = "progress.txt"
	DefaultSnapshotsFile = "challenger_snapshots.csv"
	DefaultMetadataFile  = "challenger_metadata.csv"
)

// FileStore keeps processed IDs one per line and rows in two CSV files.
// Rows are written and synced before IDs, so a crash between the two
// re-collects a match rather than losing its rows.
type FileStore struct {
	progressPath  string
	snapshotsPath string
	metadataPath  string
}

// NewFileStore creates a FileStore. Empty paths fall back to the defaults.
func NewFileStore(progressPath, snapshotsPath, metadataPath string) *FileStore {
	if progressPath == "" {
		progressPath = DefaultProgressFile
	}
	if snapshotsPath == "" {
		snapshotsPath = DefaultSnapshotsFile
	}
	if metadataPath == "" {
		metadataPath = DefaultMetadataFile
	}
	return &FileStore{
		progressPath:  progressPath,
		snapshotsPath: snapshotsPath,
		metadataPath:  metadataPath,
	}
}

// Load reads the processed-ID file. A missing file is an empty set.
func (s *FileStore) Load(_ context.Context) (map[string]struct{}, error) {
	seen := make(map[string]struct{})

	f, err := os.Open(s.progressPath)
	if errors.Is(err, fs.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open progress file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}
	return seen, nil
}

// Append writes snapshot rows, then metadata rows, then IDs.
func (s *FileStore) Append(_ context.Context, b Batch) error {
	if len(b.Snapshots) > 0 {
		records := make([][]string, len(b.Snapshots))
		for i, r := range b.Snapshots {
			records[i] = r.Record()
		}
		if err := appendCSV(s.snapshotsPath, extract.SnapshotHeader, records); err != nil {
			return fmt.Errorf("append snapshots: %w", err)
		}
	}
	if len(b.Metadata) > 0 {
		records := make([][]string, len(b.Metadata))
		for i, r := range b.Metadata {
			records[i] = r.Record()
		}
		if err := appendCSV(s.metadataPath, extract.MetadataHeader, records); err != nil {
			return fmt.Errorf("append metadata: %w", err)
		}
	}
	if len(b.MatchIDs) > 0 {
		if err := appendLines(s.progressPath, b.MatchIDs); err != nil {
			return fmt.Errorf("append progress: %w", err)
		}
	}
	return nil
}

// Close is a no-op; files are opened per Append.
func (s *FileStore) Close() error {
	return nil
}

func openAppend(path string) (*os.File, bool, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, false, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	return f, info.Size() == 0, nil
}

// appendCSV appends records, writing header first when the file is empty.
func appendCSV(path string, header []string, records [][]string) error {
	f, empty, err := openAppend(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if empty {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return syncClose(f)
}

func appendLines(path string, lines []string) error {
	f, _, err := openAppend(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return syncClose(f)
}

func syncClose(f *os.File) error {
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
