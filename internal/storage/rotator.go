// Package storage archives raw match payloads to rotating JSONL files.
//
// Files move through three directories: hot (being written), warm (closed,
// uncompressed) and cold (gzipped).
package storage

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"match-snapshots/internal/logging"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	// Rotation triggers
	DefaultMaxMatchesPerFile = 500
	DefaultMaxFileAge        = 1 * time.Hour
)

// RotatorConfig tunes rotation. Zero values take the defaults.
type RotatorConfig struct {
	MaxMatchesPerFile int
	MaxFileAge        time.Duration
	// CompressOnRotate gzips each file into cold as soon as it leaves hot.
	CompressOnRotate bool
}

// FileRotator writes RawMatch lines to rotating JSONL files.
type FileRotator struct {
	mu sync.Mutex

	hotDir  string
	warmDir string
	coldDir string

	cfg RotatorConfig
	log logrus.FieldLogger
	now func() time.Time

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	matchCount    int
	fileOpenedAt  time.Time
	seq           int
}

// NewFileRotator creates the hot/warm/cold layout under baseDir.
func NewFileRotator(baseDir string, cfg RotatorConfig, log logrus.FieldLogger) (*FileRotator, error) {
	if cfg.MaxMatchesPerFile <= 0 {
		cfg.MaxMatchesPerFile = DefaultMaxMatchesPerFile
	}
	if cfg.MaxFileAge <= 0 {
		cfg.MaxFileAge = DefaultMaxFileAge
	}
	if log == nil {
		log = logging.Discard()
	}

	r := &FileRotator{
		hotDir:  filepath.Join(baseDir, "hot"),
		warmDir: filepath.Join(baseDir, "warm"),
		coldDir: filepath.Join(baseDir, "cold"),
		cfg:     cfg,
		log:     log.WithField("component", "archive"),
		now:     time.Now,
	}
	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return r, nil
}

// Write appends one match and rotates when the file is full or too old.
// The line is flushed to the OS before Write returns.
func (r *FileRotator) Write(rec *RawMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !json.Valid(rec.Details) || !json.Valid(rec.Timeline) {
		return fmt.Errorf("refusing to archive %s: payload is not valid JSON", rec.MatchID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", rec.MatchID, err)
	}

	if r.currentFile == nil {
		if err := r.open(); err != nil {
			return err
		}
	}
	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	r.matchCount++

	if r.shouldRotate() {
		return r.closeCurrent()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.matchCount >= r.cfg.MaxMatchesPerFile {
		return true
	}
	return r.now().Sub(r.fileOpenedAt) >= r.cfg.MaxFileAge
}

func (r *FileRotator) open() error {
	r.seq++
	filename := fmt.Sprintf("raw_matches_%s_%04d.jsonl", r.now().Format("2006-01-02_15-04-05"), r.seq)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}
	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.matchCount = 0
	r.fileOpenedAt = r.now()

	r.log.Debugf("Opened new file: %s", filename)
	return nil
}

// closeCurrent moves the open file to warm, or drops it when empty.
func (r *FileRotator) closeCurrent() error {
	if r.currentFile == nil {
		return nil
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	r.currentFile = nil

	if r.matchCount == 0 {
		return os.Remove(r.currentPath)
	}

	warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.log.Infof("Moved %s to warm storage (%d matches)", filepath.Base(warmPath), r.matchCount)

	if r.cfg.CompressOnRotate {
		if err := CompressToCold(warmPath, r.coldDir); err != nil {
			return fmt.Errorf("failed to compress %s: %w", filepath.Base(warmPath), err)
		}
		r.log.Infof("Compressed %s to cold storage", filepath.Base(warmPath))
	}
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCurrent()
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (matchesInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentFile == nil {
		return 0, ""
	}
	return r.matchCount, filepath.Base(r.currentPath)
}

// CompressToCold gzips a warm file into coldDir and removes the original.
func CompressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	if err := dst.Sync(); err != nil {
		return err
	}

	return os.Remove(warmPath)
}
