package payex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every remote call. There is no cancellation beyond it.
const DefaultTimeout = 45 * time.Second

const rejectedStatus = "99"

// Client issues the processor API calls: the token exchange plus the payment
// intent, mandate and collection submissions. Every call is a single attempt
// with a fresh bearer token.
type Client struct {
	Credentials Credentials
	HTTPClient  *http.Client
	// BaseURL overrides the environment-derived API root, used by tests.
	BaseURL string
	Logger  zerolog.Logger
}

// NewClient builds a client with the default timeout applied.
func NewClient(creds Credentials, logger zerolog.Logger) *Client {
	return &Client{
		Credentials: creds,
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		Logger:      logger,
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return c.Credentials.BaseURL()
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// Token exchanges the stored credentials for a bearer token using HTTP Basic
// authentication. Any transport error or non-200 status is an AuthError.
func (c *Client) Token(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL(), tokenPath), nil)
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.Credentials.Email + ":" + c.Credentials.SecretKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Error().Err(err).Str("op", "token").Msg("payex request failed")
		return Token{}, &AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.Logger.Error().Int("status", resp.StatusCode).Str("op", "token").
			Str("response", string(body)).Msg("payex request rejected")
		return Token{}, &AuthError{Status: resp.StatusCode}
	}
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Token{}, &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if parsed.Token == "" {
		return Token{}, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("empty token in response")}
	}
	return Token{Value: parsed.Token, Sandbox: c.Credentials.Sandbox}, nil
}

// SubmitPaymentIntent opens a one-off hosted checkout and returns the
// redirect URL the buyer should be sent to.
func (c *Client) SubmitPaymentIntent(ctx context.Context, tok Token, req PaymentIntentRequest) (string, error) {
	resp, err := c.post(ctx, "payment_intent", paymentsPath, tok, req)
	if err != nil {
		return "", err
	}
	return resp.Result[0].URL, nil
}

// SubmitMandate opens a recurring mandate agreement and returns the redirect
// URL for the buyer to authorise it.
func (c *Client) SubmitMandate(ctx context.Context, tok Token, req MandateRequest) (string, error) {
	resp, err := c.post(ctx, "mandate", mandatesPath, tok, req)
	if err != nil {
		return "", err
	}
	return resp.Result[0].URL, nil
}

// SubmitCollection executes one recurring charge against an existing mandate.
func (c *Client) SubmitCollection(ctx context.Context, tok Token, req CollectionRequest) (CollectionResult, error) {
	resp, err := c.post(ctx, "collection", collectionsPath, tok, req)
	if err != nil {
		return CollectionResult{}, err
	}
	entry := resp.Result[0]
	return CollectionResult{CollectionNumber: entry.CollectionNumber, Status: entry.Status}, nil
}

// post sends a single-element JSON array body with bearer authorization and
// classifies the response: transport/non-200 → TransientError, remote status
// "99" or empty result → RejectionError.
func (c *Client) post(ctx context.Context, op, path string, tok Token, payload any) (*apiResponse, error) {
	body, err := json.Marshal([]any{payload})
	if err != nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("encode payload: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL(), path), bytes.NewReader(body))
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Error().Err(err).Str("op", op).RawJSON("request", body).Msg("payex request failed")
		return nil, &TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.Logger.Error().Int("status", resp.StatusCode).Str("op", op).
			RawJSON("request", body).Str("response", string(raw)).Msg("payex request rejected")
		return nil, &TransientError{Op: op, Status: resp.StatusCode}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Status == rejectedStatus || len(parsed.Result) == 0 {
		c.Logger.Warn().Str("op", op).Str("remote_status", parsed.Status).
			Str("message", parsed.Message).RawJSON("request", body).Msg("payex rejected submission")
		return nil, &RejectionError{Op: op, Message: rejectionMessage(parsed)}
	}
	return &parsed, nil
}

func rejectionMessage(resp apiResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if len(resp.Result) > 0 && resp.Result[0].Error != "" {
		return resp.Result[0].Error
	}
	return "empty result"
}
