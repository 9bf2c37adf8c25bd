package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/examsaathi/backend/internal/model"
)

// APIError is a failed call to the backend, carrying the envelope's code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client calls the auth endpoints of the ExamSaathi API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StartOTP asks the server to issue a code. demoOTP is only set when the
// server runs in demo mode.
func (c *Client) StartOTP(ctx context.Context, name, phone string) (demoOTP string, err error) {
	var out struct {
		DemoOTP string `json:"demo_otp"`
	}
	if err := c.post(ctx, "/api/auth/start", model.StartOTPRequest{Name: name, Phone: phone}, &out); err != nil {
		return "", err
	}
	return out.DemoOTP, nil
}

// VerifyOTP exchanges a code for the user record and a token.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (model.User, string, error) {
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	if err := c.post(ctx, "/api/auth/verify", model.VerifyOTPRequest{Phone: phone, OTP: otp}, &out); err != nil {
		return model.User{}, "", err
	}
	return out.User, out.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode}
	}
	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
