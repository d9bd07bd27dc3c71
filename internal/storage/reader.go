package storage

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrStop can be returned from a Walk callback to end the walk early.
var ErrStop = errors.New("storage: stop walk")

// ArchiveFiles lists the closed archive files under baseDir, warm first
// then cold, each in name order. Files still in hot are skipped.
func ArchiveFiles(baseDir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{
		filepath.Join(baseDir, "warm", "*.jsonl"),
		filepath.Join(baseDir, "cold", "*.jsonl.gz"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

// Walk decodes every record in the closed archive files under baseDir.
func Walk(baseDir string, fn func(*RawMatch) error) error {
	files, err := ArchiveFiles(baseDir)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ReadFile(path, fn); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// ReadFile decodes one JSONL file, gunzipping it when named *.gz.
func ReadFile(path string, fn func(*RawMatch) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		defer gz.Close()
		r = gz
	}

	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var rec RawMatch
		err := dec.Decode(&rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: record %d: %w", filepath.Base(path), line, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
}
