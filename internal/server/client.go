package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/standardbeagle/lexmatch/internal/types"
)

// Client talks to a running Server
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the server at addr, given either as
// host:port or as a full http URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base,
	}
}

// IsServerRunning checks if the server is accessible
func (c *Client) IsServerRunning() bool {
	_, err := c.Ping()
	return err == nil
}

// Ping sends a health check to the server
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.do(http.MethodGet, "/ping", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to ping server: %w", err)
	}
	return &resp, nil
}

// Status retrieves vocabulary and watcher statistics
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &resp, nil
}

// Extract sends one message and returns it with entities appended
func (c *Client) Extract(msg types.Message) (*types.Message, error) {
	var resp types.Message
	if err := c.do(http.MethodPost, "/extract", msg, &resp); err != nil {
		return nil, fmt.Errorf("failed to extract: %w", err)
	}
	return &resp, nil
}

// ExtractBatch sends many messages in one request
func (c *Client) ExtractBatch(msgs []types.Message) ([]types.Message, error) {
	var resp ExtractResponse
	if err := c.do(http.MethodPost, "/extract", ExtractRequest{Messages: msgs}, &resp); err != nil {
		return nil, fmt.Errorf("failed to extract: %w", err)
	}
	return resp.Messages, nil
}

// Lookup returns unfiltered candidates for text
func (c *Client) Lookup(text string) (*LookupResponse, error) {
	var resp LookupResponse
	if err := c.do(http.MethodGet, "/lookup?text="+url.QueryEscape(text), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", text, err)
	}
	return &resp, nil
}

// Vocabularies lists the server's vocabulary groups
func (c *Client) Vocabularies() ([]types.GroupInfo, error) {
	var resp VocabulariesResponse
	if err := c.do(http.MethodGet, "/vocabularies", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list vocabularies: %w", err)
	}
	return resp.Groups, nil
}

// Reload asks the server to reload its sources
func (c *Client) Reload() (*ReloadResponse, error) {
	var resp ReloadResponse
	if err := c.do(http.MethodPost, "/reload", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to reload: %w", err)
	}
	return &resp, nil
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
