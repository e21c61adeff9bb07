// Copyright 2025 The Jafka Authors.

package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPClient implements the registry client contract by POSTing JSON
// payloads to a registry service. The reference broker's own
// cluster-enrollment stack talks generated gRPC, but regenerating those
// stubs here is out of reach, so this is the smallest genuinely-fitting
// substitute: a plain net/http client and encoding/json bodies.
type HTTPClient struct {
	baseURL    string
	brokerID   int
	instanceID string
	httpClient *http.Client
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL  string
	BrokerID int
	Timeout  time.Duration
}

// NewHTTPClient builds an HTTPClient. It generates a stable per-process
// broker instance id used to disambiguate restarts of the same BrokerID.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		brokerID:   cfg.BrokerID,
		instanceID: uuid.NewString(),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Start() error {
	return nil
}

type registerBrokerRequest struct {
	BrokerID   int    `json:"broker_id"`
	InstanceID string `json:"instance_id"`
}

// RegisterBroker is idempotent: re-announcing the same (BrokerID,
// InstanceID) pair is safe on the registry side.
func (c *HTTPClient) RegisterBroker() error {
	return c.post("/brokers", registerBrokerRequest{BrokerID: c.brokerID, InstanceID: c.instanceID})
}

type registerTopicRequest struct {
	Topic      string `json:"topic"`
	BrokerID   int    `json:"broker_id"`
	InstanceID string `json:"instance_id"`
}

// RegisterTopic is idempotent: the registry treats repeated announcements
// of the same topic from the same broker as a no-op.
func (c *HTTPClient) RegisterTopic(topic string) error {
	return c.post("/topics", registerTopicRequest{Topic: topic, BrokerID: c.brokerID, InstanceID: c.instanceID})
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode registry request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("registry responded with status %d", resp.StatusCode)
	}
	return nil
}
