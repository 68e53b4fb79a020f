// Package apiclient is a typed client for the test-prep HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status    int
	Message   string
	ErrorType string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.ErrorType, e.Message)
}

// AlreadyCompleted reports whether the session was finalized by an earlier request.
func (e *APIError) AlreadyCompleted() bool {
	return e.ErrorType == "already_completed"
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, identifier, password string) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Identifier: identifier, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *Client) ListTests(ctx context.Context) ([]TestDefinition, error) {
	var defs []TestDefinition
	if err := c.do(ctx, http.MethodGet, "/api/tests", nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (c *Client) StartSession(ctx context.Context, req dto.StartSessionRequest) (*dto.SessionResponse, error) {
	var resp dto.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/tests/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	var resp dto.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/tests/session/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Finalize(ctx context.Context, sessionID string, answers []entity.UserAnswer) (*dto.FinalizeResponse, error) {
	if answers == nil {
		answers = []entity.UserAnswer{}
	}
	var resp dto.FinalizeResponse
	path := "/api/tests/session/" + sessionID + "/submit-and-finalize"
	if err := c.do(ctx, http.MethodPost, path, dto.FinalizeRequest{Answers: answers}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestDefinition mirrors one catalogue entry.
type TestDefinition struct {
	ID          entity.TestKind `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	IsAdaptive  bool            `json:"isAdaptive"`
	IsMock      bool            `json:"isMock"`
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message, ErrorType: env.ErrorType}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
