package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyChecker_Statuses(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantAccepted bool
		wantKind     ErrorKind // 0 when no error is expected
	}{
		{"ok", http.StatusOK, true, 0},
		{"forbidden", http.StatusForbidden, false, 0},
		{"unauthorized", http.StatusUnauthorized, false, 0},
		{"server error", http.StatusInternalServerError, false, KindTransient},
		{"rate limited", http.StatusTooManyRequests, false, KindTransient},
		{"not found", http.StatusNotFound, false, KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != platformStatusPath {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("X-Riot-Token") != "RGAPI-test-key" {
					t.Errorf("expected X-Riot-Token header, got %q", r.Header.Get("X-Riot-Token"))
				}
				w.WriteHeader(tt.status)
				if tt.status == http.StatusOK {
					w.Write([]byte(`{"id":"NA1","name":"North America","maintenances":[{"id":1}],"incidents":[]}`))
				}
			}))
			defer server.Close()

			status, err := NewKeyChecker(server.URL+"/", 0).Check(context.Background(), "RGAPI-test-key")
			if status.Accepted != tt.wantAccepted {
				t.Errorf("Accepted = %v, want %v", status.Accepted, tt.wantAccepted)
			}
			if status.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", status.StatusCode, tt.status)
			}
			if tt.wantKind == 0 {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			var fe *FetchError
			if !errors.As(err, &fe) || fe.Kind != tt.wantKind {
				t.Errorf("expected %s FetchError, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestKeyChecker_ReadsPlatformStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"EUW1","maintenances":[],"incidents":[{"id":7},{"id":8}]}`))
	}))
	defer server.Close()

	status, err := NewKeyChecker(server.URL, time.Second).Check(context.Background(), "RGAPI-test-key")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if status.Platform != "EUW1" || status.Maintenances != 0 || status.Incidents != 2 {
		t.Errorf("unexpected status %+v", status)
	}
}

// A dropped connection says nothing about the key.
func TestKeyChecker_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	status, err := NewKeyChecker(server.URL, 0).Check(context.Background(), "RGAPI-test-key")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTransient {
		t.Errorf("expected transient FetchError, got %v", err)
	}
	if status.Accepted {
		t.Error("key must not be reported accepted on a network error")
	}
}

func TestKeyChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	status, err := NewKeyChecker(server.URL, 50*time.Millisecond).Check(context.Background(), "RGAPI-test-key")
	if err == nil {
		t.Error("expected timeout error")
	}
	if status.Accepted {
		t.Error("key must not be reported accepted on timeout")
	}
}

func TestKeyChecker_EmptyKey(t *testing.T) {
	if _, err := NewKeyChecker("", 0).Check(context.Background(), ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestKeyChecker_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := NewKeyChecker(server.URL, 0).Check(ctx, "RGAPI-test-key")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if status.Accepted {
		t.Error("key must not be reported accepted on a cancelled context")
	}
}
