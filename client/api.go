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

	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

// APIClient calls the JSON account and message API.
type APIClient struct {
	base  string
	token string
	http  *http.Client
}

// NewAPIClient creates an API client for the server at base. A nil dial uses
// the default network stack.
func NewAPIClient(base, token string, dial DialFunc) *APIClient {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if dial != nil {
		transport.DialContext = dial
	}
	return &APIClient{
		base:  base,
		token: token,
		http:  &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a session token.
func (a *APIClient) Login(ctx context.Context, username, password string) (*protocol.AuthResponse, error) {
	var resp protocol.AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/login", protocol.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit of the most recent messages exchanged with
// counterpartID, oldest first.
func (a *APIClient) History(ctx context.Context, counterpartID int64, limit int) (*protocol.HistoryResponse, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	var resp protocol.HistoryResponse
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/api/messages/%d?%s", counterpartID, q.Encode()), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr protocol.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, apiErr.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
