// Package saleor talks to a tenant's Saleor instance: the outbound GraphQL
// client bound to one installation's credentials, and webhook signature
// verification.
package saleor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a minimal GraphQL client bound to one tenant's API URL and app
// token. Construct one per authenticated request via the middleware chain;
// it holds no mutable state.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(apiURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL: apiURL,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) APIURL() string { return c.apiURL }

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Query posts a GraphQL document and decodes the data object into out.
// GraphQL-level errors are returned as errors even on a 200 response.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("saleor request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("saleor request: unexpected status %d", resp.StatusCode)
	}
	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("saleor response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("saleor query: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("saleor response: %w", err)
		}
	}
	return nil
}

// AppID fetches the identifier of the app this client's token belongs to.
// Called once during installation to fill the auth record.
func (c *Client) AppID(ctx context.Context) (string, error) {
	var data struct {
		App struct {
			ID string `json:"id"`
		} `json:"app"`
	}
	if err := c.Query(ctx, `query { app { id } }`, nil, &data); err != nil {
		return "", err
	}
	if data.App.ID == "" {
		return "", fmt.Errorf("saleor query: empty app id")
	}
	return data.App.ID, nil
}
