package xp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskventure/taskventure-backend/internal/platform/envutil"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

// Result is what the XP/Level service reports after a credit. The engine does
// not own the leveling curve; it just forwards amounts.
type Result struct {
	Level   int    `json:"level"`
	Rank    string `json:"rank"`
	TotalXP int    `json:"total_xp"`
}

// Client credits experience to a user. Credits are idempotent per key: the
// service must treat a repeated key as already applied.
type Client interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int, reason string, idempotencyKey uuid.UUID) (*Result, error)
}

type httpClient struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := envutil.String("XP_API_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("missing XP_API_URL")
	}
	timeout := envutil.Duration("XP_API_TIMEOUT", 5*time.Second)

	return &httpClient{
		log:     log.With("client", "XPService"),
		baseURL: baseURL,
		apiKey:  envutil.String("XP_API_KEY", ""),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type creditRequest struct {
	UserID         string `json:"user_id"`
	Amount         int    `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (c *httpClient) Credit(ctx context.Context, userID uuid.UUID, amount int, reason string, idempotencyKey uuid.UUID) (*Result, error) {
	payload, err := json.Marshal(creditRequest{
		UserID:         userID.String(),
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idempotencyKey.String(),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/credits", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey.String())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credit xp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("credit xp: service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("credit xp: decode response: %w", err)
	}
	return &result, nil
}
