// Package pennyapi is the client for the Penny finance API: login, profile
// reads, cart analysis uploads, and cart confirmation.
package pennyapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/model"
)

// hoursPerWorkYear converts an annual salary to an hourly rate when the
// user never set one explicitly (40h x 52 weeks).
const hoursPerWorkYear = 2080

// Client talks to the Penny finance API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a finance API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	HourlyRate   *float64 `json:"hourly_rate"`
	AnnualSalary *float64 `json:"annual_salary"`
}

// Login exchanges credentials for a bearer token. The auth endpoint speaks
// OAuth2 password flow: form-encoded username/password.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/jwt/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("login response missing access token")
	}
	return parsed.AccessToken, nil
}

// Me fetches the authenticated user's profile. The hourly rate falls back
// to annual salary spread over a work year when unset.
func (c *Client) Me(ctx context.Context, token string) (*model.UserProfile, error) {
	body, err := c.getAuth(ctx, token, "/users/me")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	var parsed userResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	rate := 0.0
	switch {
	case parsed.HourlyRate != nil && *parsed.HourlyRate > 0:
		rate = *parsed.HourlyRate
	case parsed.AnnualSalary != nil && *parsed.AnnualSalary > 0:
		rate = *parsed.AnnualSalary / hoursPerWorkYear
	}

	return &model.UserProfile{
		FullName:   parsed.FullName,
		HourlyRate: rate,
	}, nil
}

// Accounts fetches the user's accounts.
func (c *Client) Accounts(ctx context.Context, token string) ([]model.Account, error) {
	body, err := c.getAuth(ctx, token, "/accounts/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	var accounts []model.Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts response: %w", err)
	}
	return accounts, nil
}

// AnalyzeCart uploads a screenshot for server-side vision analysis and
// returns the cart breakdown. imageData is a PNG data URL as produced by
// screenshot capture.
func (c *Client) AnalyzeCart(ctx context.Context, token, imageData string) (*model.CartAnalysis, error) {
	raw, err := DecodeImageDataURL(imageData)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "cart.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transactions/analyze-cart", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var analysis model.CartAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return &analysis, nil
}

// ConfirmCartRequest is the JSON body for cart confirmation.
type ConfirmCartRequest struct {
	Date  string           `json:"date"`
	Items []model.CartItem `json:"items"`
}

// ConfirmCart records the analyzed cart as tracked transactions.
func (c *Client) ConfirmCart(ctx context.Context, token string, items []model.CartItem, date string) ([]model.TrackedTransaction, error) {
	payload, err := json.Marshal(ConfirmCartRequest{Items: items, Date: date})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transactions/confirm-cart", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var transactions []model.TrackedTransaction
	if err := json.Unmarshal(body, &transactions); err != nil {
		return nil, fmt.Errorf("failed to parse confirm response: %w", err)
	}
	return transactions, nil
}

// getAuth performs an authenticated GET against a path.
func (c *Client) getAuth(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req)
}

// do executes a request, mapping 401 to a session error and any other
// non-2xx status to an UpstreamError carrying the server's text verbatim.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, common.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = fmt.Sprintf("request failed: %d", resp.StatusCode)
		}
		return nil, &common.UpstreamError{StatusCode: resp.StatusCode, Body: text}
	}
	return body, nil
}

// DecodeImageDataURL extracts the binary payload from a base64 image data
// URL. Accepts bare base64 too, since capture implementations vary.
func DecodeImageDataURL(dataURL string) ([]byte, error) {
	payload := dataURL
	if strings.HasPrefix(dataURL, "data:") {
		idx := strings.Index(dataURL, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed image data URL")
		}
		payload = dataURL[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return raw, nil
}
