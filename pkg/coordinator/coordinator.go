// Package coordinator is the HTTP client a participant uses to fetch round
// tasks and return trained updates.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/absmach/flclient/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeCBOR = "application/cbor"
	ContentTypeJSON = "application/json"
)

var (
	ErrNoURL          = errors.New("coordinator URL is not configured")
	ErrEmptyRoundID   = errors.New("round id is required")
	ErrUnexpectedCode = errors.New("coordinator returned unexpected status")
)

type Client interface {
	GetTask(ctx context.Context, roundID, clientID string) (fl.Task, error)
	PostUpdate(ctx context.Context, update fl.Update) error
}

type httpClient struct {
	baseURL string
	client  *http.Client
	encMode cbor.EncMode
}

func NewClient(baseURL string, timeout time.Duration) (Client, error) {
	if baseURL == "" {
		return nil, ErrNoURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("coordinator URL is not valid: %w", err)
	}

	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		encMode: encMode,
	}, nil
}

func (c *httpClient) GetTask(ctx context.Context, roundID, clientID string) (fl.Task, error) {
	if roundID == "" {
		return fl.Task{}, ErrEmptyRoundID
	}

	q := url.Values{}
	q.Set("round_id", roundID)
	q.Set("proplet_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/task?"+q.Encode(), http.NoBody)
	if err != nil {
		return fl.Task{}, fmt.Errorf("failed to create task request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeJSON)

	resp, err := c.client.Do(req)
	if err != nil {
		return fl.Task{}, fmt.Errorf("failed to fetch task from coordinator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fl.Task{}, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	var taskResp struct {
		Task fl.Task `json:"task"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&taskResp); err != nil {
		return fl.Task{}, fmt.Errorf("failed to decode coordinator response: %w", err)
	}
	if taskResp.Task.RoundID == "" {
		taskResp.Task.RoundID = roundID
	}

	return taskResp.Task, nil
}

func (c *httpClient) PostUpdate(ctx context.Context, update fl.Update) error {
	if update.RoundID == "" {
		return ErrEmptyRoundID
	}

	body, err := c.encMode.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create update request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeCBOR)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post update to coordinator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	return nil
}
