// Package client uploads exported inventories to the service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	timeout          = 10 * time.Second
	adminTokenHeader = "X-Admin-Token"
)

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inventory service returned status %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("inventory service returned status %d", e.StatusCode)
}

type Client struct {
	baseURL *url.URL
	token   string
	hc      *http.Client
}

// New returns a client for the service at baseURL authenticating with token.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	return &Client{
		baseURL: u,
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// Upload sends doc, a complete inventory document, replacing the stored one.
func (c *Client) Upload(ctx context.Context, doc []byte) error {
	if !json.Valid(doc) {
		return fmt.Errorf("inventory document is not valid JSON")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("inventory-upload").String(), bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(adminTokenHeader, c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("error calling inventory service: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("error reading response from inventory service: %w", err)
	}
	decodeErr := json.Unmarshal(b, &body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr != nil {
			log.Debugf("[client] non-JSON error response with status %d: %v", resp.StatusCode, decodeErr)
		}
		return &APIError{StatusCode: resp.StatusCode, Code: body.Error}
	}
	if decodeErr != nil {
		return fmt.Errorf("error decoding response from inventory service: %w", decodeErr)
	}
	if !body.OK {
		return fmt.Errorf("inventory service did not acknowledge upload: %s", b)
	}
	return nil
}

// Health reports whether the service answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("health").String(), nil)
	if err != nil {
		return fmt.Errorf("error creating health request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("error calling inventory service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
