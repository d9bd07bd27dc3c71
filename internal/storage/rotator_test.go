package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRecord(i int) *RawMatch {
	return &RawMatch{
		RunID:       "run-1",
		MatchID:     fmt.Sprintf("NA1_%d", i),
		CollectedAt: time.Date(2025, 9, 1, 12, 0, i, 0, time.UTC),
		Details:     []byte(fmt.Sprintf(`{"metadata":{"matchId":"NA1_%d"}}`, i)),
		Timeline:    []byte(`{"info":{"frames":[]}}`),
	}
}

func countFiles(t *testing.T, pattern string) int {
	t.Helper()
	m, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatal(err)
	}
	return len(m)
}

func TestFileRotator_RotatesByCount(t *testing.T) {
	base := t.TempDir()
	r, err := NewFileRotator(base, RotatorConfig{MaxMatchesPerFile: 2}, nil)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := r.Write(testRecord(i)); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if n, name := r.Stats(); n != 1 || name == "" {
		t.Errorf("expected 1 match in open file, got %d (%q)", n, name)
	}
	if got := countFiles(t, filepath.Join(base, "warm", "*.jsonl")); got != 2 {
		t.Errorf("expected 2 warm files before close, got %d", got)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := countFiles(t, filepath.Join(base, "warm", "*.jsonl")); got != 3 {
		t.Errorf("expected 3 warm files after close, got %d", got)
	}
	if got := countFiles(t, filepath.Join(base, "hot", "*")); got != 0 {
		t.Errorf("expected hot dir empty, got %d files", got)
	}
}

func TestFileRotator_RotatesByAge(t *testing.T) {
	base := t.TempDir()
	r, err := NewFileRotator(base, RotatorConfig{MaxMatchesPerFile: 100, MaxFileAge: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}
	clock := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	r.Write(testRecord(1))
	clock = clock.Add(2 * time.Minute)
	r.Write(testRecord(2))

	if got := countFiles(t, filepath.Join(base, "warm", "*.jsonl")); got != 1 {
		t.Errorf("expected aged file rotated to warm, got %d", got)
	}
}

func TestFileRotator_CloseWithoutWrites(t *testing.T) {
	base := t.TempDir()
	r, err := NewFileRotator(base, RotatorConfig{}, nil)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := countFiles(t, filepath.Join(base, "*", "*")); got != 0 {
		t.Errorf("expected no files, got %d", got)
	}
}

func TestFileRotator_CompressOnRotateAndWalk(t *testing.T) {
	base := t.TempDir()
	r, err := NewFileRotator(base, RotatorConfig{MaxMatchesPerFile: 3, CompressOnRotate: true}, nil)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := r.Write(testRecord(i)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := countFiles(t, filepath.Join(base, "cold", "*.jsonl.gz")); got != 2 {
		t.Fatalf("expected 2 cold files, got %d", got)
	}
	if got := countFiles(t, filepath.Join(base, "warm", "*")); got != 0 {
		t.Errorf("expected warm dir empty, got %d", got)
	}

	var ids []string
	err = Walk(base, func(m *RawMatch) error {
		ids = append(ids, m.MatchID)
		if m.RunID != "run-1" || len(m.Details) == 0 || len(m.Timeline) == 0 {
			t.Errorf("incomplete record %+v", m)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(ids) != 4 || ids[0] != "NA1_0" || ids[3] != "NA1_3" {
		t.Errorf("unexpected walk order %v", ids)
	}
}

func TestWalk_StopEarly(t *testing.T) {
	base := t.TempDir()
	r, _ := NewFileRotator(base, RotatorConfig{}, nil)
	for i := 0; i < 3; i++ {
		r.Write(testRecord(i))
	}
	r.Close()

	seen := 0
	err := Walk(base, func(*RawMatch) error {
		seen++
		return ErrStop
	})
	if err != nil || seen != 1 {
		t.Errorf("expected clean stop after 1 record, got %d, %v", seen, err)
	}
}

func TestReadFile_CorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	content := `{"matchId":"NA1_1","details":{},"timeline":{}}` + "\n" + `{"matchId":` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	n := 0
	err := ReadFile(path, func(*RawMatch) error { n++; return nil })
	if err == nil {
		t.Fatal("expected decode error")
	}
	if n != 1 {
		t.Errorf("expected first record delivered, got %d", n)
	}
}

func TestFileRotator_WriteRejectsInvalidPayload(t *testing.T) {
	r, _ := NewFileRotator(t.TempDir(), RotatorConfig{}, nil)
	defer r.Close()

	rec := testRecord(1)
	rec.Details = []byte("{not json")
	if err := r.Write(rec); err == nil {
		t.Error("expected marshal error for invalid raw payload")
	}
}

func TestWalk_CallbackError(t *testing.T) {
	base := t.TempDir()
	r, _ := NewFileRotator(base, RotatorConfig{}, nil)
	r.Write(testRecord(1))
	r.Close()

	boom := errors.New("boom")
	if err := Walk(base, func(*RawMatch) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}
