/**
 * @description
 * This package provides a client for the Google Sheets v4 REST API,
 * authenticated as a service account. It implements the two-legged OAuth flow:
 * a short-lived RS256 JWT assertion signed with the service account's private
 * key is exchanged at Google's token endpoint for a cached bearer token, which
 * then authorizes the values read and append calls.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: For signing the service-account assertion.
 * - bytes, context, crypto/rsa, encoding/json, fmt, net/http, net/url, strings,
 *   sync, time: Standard Go libraries.
 */
package sheetsclient

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultBaseURL is the spreadsheets endpoint root.
	DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	// DefaultTokenURL is Google's OAuth token exchange endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	// Scope grants read/write access to spreadsheets.
	Scope = "https://www.googleapis.com/auth/spreadsheets"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Client is an authenticated Google Sheets API client.
type Client struct {
	BaseURL             string
	TokenURL            string
	ServiceAccountEmail string
	HTTPClient          *http.Client

	privateKey *rsa.PrivateKey
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient parses the service-account private key and returns a ready client.
// Keys arriving through environment variables commonly carry literal "\n"
// sequences; those are normalized before parsing.
func NewClient(serviceAccountEmail, privateKeyPEM string) (*Client, error) {
	normalized := strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	return &Client{
		BaseURL:             DefaultBaseURL,
		TokenURL:            DefaultTokenURL,
		ServiceAccountEmail: serviceAccountEmail,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		privateKey: key,
		now:        time.Now,
	}, nil
}

// tokenResponse is the token endpoint's success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ErrorResponse represents an error from the Sheets API.
type ErrorResponse struct {
	ErrorInfo struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.ErrorInfo.Message != "" {
		return fmt.Sprintf("sheets api error: %s - %s", e.ErrorInfo.Status, e.ErrorInfo.Message)
	}
	return "unknown sheets api error"
}

// token returns a valid bearer token, exchanging a fresh assertion when the
// cached one is missing or within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	issuedAt := c.now()
	claims := jwt.MapClaims{
		"iss":   c.ServiceAccountEmail,
		"scope": Scope,
		"aud":   c.TokenURL,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, "POST", c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=sheets_client op=token status=%d msg=\"token exchange failed\"", resp.StatusCode)
		return "", fmt.Errorf("token exchange failed (status %d)", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(bodyBytes, &tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// valueRange mirrors the Sheets API ValueRange payload. Values decode as
// interface{} because the API is not guaranteed to return strings for every
// cell rendering mode.
type valueRange struct {
	Range  string          `json:"range,omitempty"`
	Values [][]interface{} `json:"values,omitempty"`
}

// GetValues reads a range from the spreadsheet, rendering every cell to a
// string.
func (c *Client) GetValues(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s", c.BaseURL, spreadsheetID, url.PathEscape(readRange))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create values request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute values request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read values response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError("get_values", resp.StatusCode, bodyBytes)
	}

	var vr valueRange
	if err := json.Unmarshal(bodyBytes, &vr); err != nil {
		return nil, fmt.Errorf("failed to decode values response: %w", err)
	}

	rows := make([][]string, 0, len(vr.Values))
	for _, raw := range vr.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow appends a single row after the last non-empty row of the range.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, appendRange string, row []string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	cells := make([]interface{}, 0, len(row))
	for _, v := range row {
		cells = append(cells, v)
	}
	body, err := json.Marshal(valueRange{Values: [][]interface{}{cells}})
	if err != nil {
		return fmt.Errorf("failed to marshal append request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS", c.BaseURL, spreadsheetID, url.PathEscape(appendRange))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute append request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read append response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError("append_row", resp.StatusCode, bodyBytes)
	}

	return nil
}

func (c *Client) decodeError(op string, statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.ErrorInfo.Message == "" {
		log.Printf("level=warn component=sheets_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, statusCode)
		return fmt.Errorf("sheets request failed (status %d)", statusCode)
	}
	log.Printf("level=warn component=sheets_client op=%s status=%d message=%q", op, statusCode, errResp.ErrorInfo.Message)
	return &errResp
}
