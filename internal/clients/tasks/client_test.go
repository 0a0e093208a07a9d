package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

func TestSnapshotFetchAndDegrade(t *testing.T) {
	var failing atomic.Bool
	var requests atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []map[string]interface{}{
				{"id": "t1", "title": "Water the plants", "list": "home", "priority": "high", "completed": false},
			},
			"lists": []string{"home"},
		})
	}))
	defer server.Close()

	t.Setenv("TASKS_API_URL", server.URL)
	t.Setenv("TASKS_API_KEY", "test-key")

	client, err := NewClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	userID := uuid.New()

	snap, err := client.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Degraded {
		t.Fatalf("healthy provider must not degrade")
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "t1" {
		t.Fatalf("unexpected snapshot: %+v", snap.Tasks)
	}

	// Provider outage: last-good snapshot comes back flagged degraded, and
	// the caller never sees an error.
	failing.Store(true)
	snap, err = client.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("degraded snapshot: %v", err)
	}
	if !snap.Degraded {
		t.Fatalf("expected degraded flag during outage")
	}
	if len(snap.Tasks) != 1 {
		t.Fatalf("expected cached tasks to survive the outage: %+v", snap.Tasks)
	}

	// A user with no cached snapshot degrades to empty.
	snap, err = client.Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("empty degraded snapshot: %v", err)
	}
	if !snap.Degraded || len(snap.Tasks) != 0 {
		t.Fatalf("expected empty degraded snapshot: %+v", snap)
	}
}

func TestSnapshotRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"tasks": []map[string]interface{}{}, "lists": []string{}})
	}))
	defer server.Close()

	t.Setenv("TASKS_API_URL", server.URL)
	t.Setenv("TASKS_API_KEY", "")

	client, err := NewClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	snap, err := client.Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Degraded {
		t.Fatalf("retry should have recovered, not degraded")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one retry: calls=%d", calls.Load())
	}
}

func TestCompleteTaskInvalidatesCache(t *testing.T) {
	tasksDone := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			tasksDone = true
			w.WriteHeader(http.StatusOK)
			return
		}
		completed := tasksDone
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tasks": []map[string]interface{}{
				{"id": "t1", "title": "Water the plants", "completed": completed},
			},
		})
	}))
	defer server.Close()

	t.Setenv("TASKS_API_URL", server.URL)
	t.Setenv("TASKS_API_KEY", "")

	client, err := NewClient(logger.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	userID := uuid.New()

	if _, err := client.Snapshot(context.Background(), userID); err != nil {
		t.Fatalf("warm snapshot: %v", err)
	}
	if err := client.CompleteTask(context.Background(), userID, "t1"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	snap, err := client.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("refetch snapshot: %v", err)
	}
	if len(snap.Tasks) != 1 || !snap.Tasks[0].Completed {
		t.Fatalf("expected fresh snapshot to reflect the completion: %+v", snap.Tasks)
	}

	if err := client.CompleteTask(context.Background(), userID, ""); err == nil {
		t.Fatalf("expected missing task id to error")
	}
}
