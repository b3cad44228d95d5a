// Package client talks to the console REST API.
//
// Every authenticated call resolves its bearer token through the injected
// Credentials first; a missing or expired token fails with ErrSessionExpired
// before any request is sent. Failure responses become *RemoteError, transport
// failures *NetworkError.
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

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/rs/zerolog"
)

// Client is the HTTP transport for the console
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	log        zerolog.Logger
}

// New creates a client for the API at baseURL, e.g. "http://localhost:8080"
func New(baseURL string, creds Credentials, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		log:        log,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, authed bool) (*http.Response, error) {
	op := method + " " + path

	var token string
	if authed {
		t, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().Str("op", op).Msg("request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return resp, nil
}

// decodeResponse turns failure statuses into *RemoteError and decodes the rest into target
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := strings.TrimSpace(string(body))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &RemoteError{Status: resp.StatusCode, Body: msg}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	return decodeResponse(resp, target)
}

func resourcePath(kind domain.Kind, parts ...string) string {
	p := "/api/" + url.PathEscape(string(kind))
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Login exchanges the admin password for a bearer token
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/login", map[string]string{"password": password}, false)
	if err != nil {
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	return result.Token, nil
}

// Health checks the server is up
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil, false)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

// List returns every record of a kind
func (c *Client) List(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	var records []domain.Record
	if err := c.call(ctx, http.MethodGet, resourcePath(kind), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one record
func (c *Client) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	var rec domain.Record
	if err := c.call(ctx, http.MethodGet, resourcePath(kind, id), nil, &rec); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// Create posts a record; the server assigns its id
func (c *Client) Create(ctx context.Context, kind domain.Kind, rec domain.Record) (domain.Record, error) {
	var created domain.Record
	if err := c.call(ctx, http.MethodPost, resourcePath(kind), rec, &created); err != nil {
		return domain.Record{}, err
	}
	if created.ID == "" {
		return domain.Record{}, fmt.Errorf("create %s: response has no id", kind)
	}
	return created, nil
}

// UpdateAttribute sets one scalar attribute
func (c *Client) UpdateAttribute(ctx context.Context, kind domain.Kind, id, attr, value string) error {
	return c.call(ctx, http.MethodPut, resourcePath(kind, id, attr), map[string]string{attr: value}, nil)
}

// SetRelation points a relation at relID
func (c *Client) SetRelation(ctx context.Context, kind domain.Kind, id, relation, relID string) error {
	body := map[string]string{domain.RelationKey(relation): relID}
	return c.call(ctx, http.MethodPut, resourcePath(kind, id, relation), body, nil)
}

// Remove deletes a record
func (c *Client) Remove(ctx context.Context, kind domain.Kind, id string) error {
	return c.call(ctx, http.MethodDelete, resourcePath(kind, id), nil, nil)
}

// Generate queues cover letter generation for a recipient
func (c *Client) Generate(ctx context.Context, recipientID string) error {
	return c.call(ctx, http.MethodPost, resourcePath(domain.KindRecipient, recipientID, "generate"), struct{}{}, nil)
}

// Refine queues a refinement of a cover letter
func (c *Client) Refine(ctx context.Context, coverLetterID, prompt string) error {
	body := map[string]string{"prompt": prompt}
	return c.call(ctx, http.MethodPost, resourcePath(domain.KindCoverLetter, coverLetterID, "refine"), body, nil)
}

// Send queues a cover letter for mailing
func (c *Client) Send(ctx context.Context, coverLetterID string) error {
	return c.call(ctx, http.MethodPost, resourcePath(domain.KindCoverLetter, coverLetterID, "send"), struct{}{}, nil)
}
