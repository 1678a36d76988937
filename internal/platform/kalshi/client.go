package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	basePath   string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier.
func NewClient(baseURL, apiKeyID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.basePath = u.Path
	}
	return c
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// GetMarkets returns one page of Kalshi markets. The returned cursor is
// empty on the last page.
func (c *Client) GetMarkets(ctx context.Context, q MarketsQuery) (MarketsPage, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}

	path := "/markets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: get markets: %w", err)
	}

	var page MarketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: decode markets: %w", err)
	}
	return page, nil
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (KalshiMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market KalshiMarket `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: decode market: %w", err)
	}
	return resp.Market, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, optionally signs (RSA), sends, and reads an HTTP request
// against the Kalshi API. Market data endpoints are public, so requests go out
// unsigned when no key is configured.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil {
		if err := c.signRequest(req, method, c.signingPath(path)); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// signingPath is the full URL path without the query string, which is what
// Kalshi expects inside the signed message.
func (c *Client) signingPath(path string) string {
	full := c.basePath + path
	if i := strings.IndexByte(full, '?'); i >= 0 {
		full = full[:i]
	}
	return full
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over the timestamp + method + path
// message string.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	// The message to sign is: timestamp + method + path
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	encodedSig := base64.StdEncoding.EncodeToString(signature)

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", encodedSig)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)

	return nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: %w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	case statusCode >= 500:
		return fmt.Errorf("kalshi: %w: HTTP %d", domain.ErrUpstreamUnavailable, statusCode)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
