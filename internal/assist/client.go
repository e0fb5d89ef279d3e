package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/pkg/apperrors"
)

const healthCacheKey = "assist:health"

// Answer is the opaque result of an assist query. The portal relays it to
// the caller without interpreting the text.
type Answer struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	OK         bool     `json:"ok"`
}

// Client talks to the external retrieval-backed answer service. Staff
// queries additionally search the internal knowledge corpus.
type Client struct {
	baseURL   string
	http      *http.Client
	redis     *redis.Client
	healthTTL time.Duration
	logger    *zap.Logger
}

// NewClient builds a client. A nil redis client disables health caching.
func NewClient(cfg config.AssistConfig, redisClient *redis.Client, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	healthTTL := time.Duration(cfg.HealthTTLSeconds) * time.Second
	if healthTTL <= 0 {
		healthTTL = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		http:      &http.Client{Timeout: timeout},
		redis:     redisClient,
		healthTTL: healthTTL,
		logger:    logger,
	}
}

// Enabled reports whether an assist backend is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type queryRequest struct {
	Question       string `json:"question"`
	TicketID       string `json:"ticket_id,omitempty"`
	IncludePrivate bool   `json:"include_private"`
}

// Query sends a question to the assist backend. The corpus scope follows
// the caller's role: staff may search internal documents.
func (c *Client) Query(ctx context.Context, principal domain.Principal, question, ticketID string) (*Answer, error) {
	if !c.Enabled() {
		return nil, apperrors.NewNotFound("assist", nil)
	}

	payload, err := json.Marshal(queryRequest{
		Question:       question,
		TicketID:       ticketID,
		IncludePrivate: principal.IsStaff(),
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("assist query failed", zap.Error(err))
		return &Answer{OK: false}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("assist query rejected", zap.Int("status", resp.StatusCode))
		return &Answer{OK: false}, nil
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		c.logger.Warn("assist response malformed", zap.Error(err))
		return &Answer{OK: false}, nil
	}
	answer.OK = true
	return &answer, nil
}

// Healthy probes the assist backend, caching the verdict briefly so the
// portal's health endpoint does not hammer the collaborator.
func (c *Client) Healthy(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, healthCacheKey).Result(); err == nil {
			return cached == "up"
		}
	}

	healthy := c.probe(ctx)
	if c.redis != nil {
		verdict := "down"
		if healthy {
			verdict = "up"
		}
		if err := c.redis.Set(ctx, healthCacheKey, verdict, c.healthTTL).Err(); err != nil {
			c.logger.Debug("assist health cache write failed", zap.Error(err))
		}
	}
	return healthy
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/healthz", c.baseURL), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
