package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/taskventure/taskventure-backend/internal/platform/envutil"
	"github.com/taskventure/taskventure-backend/internal/platform/httpx"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

const snapshotCacheSize = 4096

// Client reads task lists from the external to-do provider and can ask it to
// mark a task completed.
type Client interface {
	// Snapshot returns the user's current tasks. On provider failure it
	// degrades to the last-good cached snapshot, or an empty one, rather than
	// returning an error: objective evaluation must stay available.
	Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error)
	CompleteTask(ctx context.Context, userID uuid.UUID, taskID string) error
}

type httpClient struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *lru.Cache
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := envutil.String("TASKS_API_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("missing TASKS_API_URL")
	}
	timeout := envutil.Duration("TASKS_API_TIMEOUT", 5*time.Second)

	cache, err := lru.New(snapshotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init snapshot cache: %w", err)
	}

	return &httpClient{
		log:     log.With("client", "TaskSource"),
		baseURL: baseURL,
		apiKey:  envutil.String("TASKS_API_KEY", ""),
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
	}, nil
}

type snapshotResponse struct {
	Tasks []Task   `json:"tasks"`
	Lists []string `json:"lists"`
}

func (c *httpClient) Snapshot(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	url := fmt.Sprintf("%s/users/%s/tasks", c.baseURL, userID)

	body, err := c.get(ctx, url)
	if err != nil {
		// One retry for transient failures before degrading.
		if httpx.IsRetryableError(err) {
			time.Sleep(httpx.JitterSleep(200 * time.Millisecond))
			body, err = c.get(ctx, url)
		}
	}
	if err != nil {
		c.log.Warn("Task snapshot fetch failed, degrading", "error", err, "user_id", userID)
		return c.degradedSnapshot(userID), nil
	}

	var parsed snapshotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn("Task snapshot unmarshal failed, degrading", "error", err, "user_id", userID)
		return c.degradedSnapshot(userID), nil
	}

	snap := Snapshot{Tasks: parsed.Tasks, Lists: parsed.Lists, FetchedAt: time.Now()}
	c.cache.Add(userID, snap)
	return snap, nil
}

func (c *httpClient) degradedSnapshot(userID uuid.UUID) Snapshot {
	if cached, ok := c.cache.Get(userID); ok {
		if snap, ok := cached.(Snapshot); ok {
			snap.Degraded = true
			return snap
		}
	}
	return Snapshot{FetchedAt: time.Now(), Degraded: true}
}

func (c *httpClient) CompleteTask(ctx context.Context, userID uuid.UUID, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("missing task id")
	}
	url := fmt.Sprintf("%s/users/%s/tasks/%s/complete", c.baseURL, userID, taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("complete task: provider returned %d", resp.StatusCode)
	}
	// Invalidate so the next snapshot reflects the completion.
	c.cache.Remove(userID)
	return nil
}

func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (c *httpClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string       { return fmt.Sprintf("provider returned %d", e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }
