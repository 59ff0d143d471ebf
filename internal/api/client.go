package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"arkdrop/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "DROP_HTTP_TIMEOUT"
	tokenEnvKey        = "DROP_TOKEN"
	maxPayloadBytes    = 1 << 20

	// TokenCookie is the cookie the drop server reads credentials from.
	TokenCookie = "droptoken"
	// FilePrefix is prepended to an attachment's file_path to fetch its bytes.
	FilePrefix = "/files/"
)

// Client is a simple HTTP client for the drop API.
type Client struct {
	baseURL string
	http    *http.Client
	upload  *http.Client
	token   string
}

// NewClient creates a new API client. Uploads are bounded only by the
// request context so large files are not cut off by the request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		upload:  &http.Client{},
		token:   strings.TrimSpace(os.Getenv(tokenEnvKey)),
	}
}

// SetToken sets the credential sent with every request.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// SetTimeout overrides the per-request timeout for non-upload requests.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches the full item list.
func (c *Client) List(ctx context.Context) (models.ListSnapshot, error) {
	var resp models.ListSnapshot
	err := c.do(ctx, http.MethodGet, "/api/list", nil, &resp)
	if resp.List == nil {
		resp.List = []models.Item{}
	}
	return resp, err
}

// Favorite toggles the star on one item.
func (c *Client) Favorite(ctx context.Context, id int64) (string, error) {
	return c.postText(ctx, "/api/favorite", idQuery(id))
}

// Delete removes one item.
func (c *Client) Delete(ctx context.Context, id int64) (string, error) {
	return c.postText(ctx, "/api/delete", idQuery(id))
}

// Clean removes every item.
func (c *Client) Clean(ctx context.Context) (string, error) {
	return c.postText(ctx, "/api/clean", nil)
}

// Login exchanges the board password for a token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	form := url.Values{}
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	token, err := readPayload(resp)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("login returned an empty token")
	}
	return token, nil
}

// FileURL returns the retrieval URL for an attachment path.
func (c *Client) FileURL(filePath string) string {
	parts := strings.Split(strings.TrimLeft(filePath, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return c.baseURL + FilePrefix + strings.Join(parts, "/")
}

// Download streams attachment bytes to w.
func (c *Client) Download(ctx context.Context, filePath string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(filePath), nil)
	if err != nil {
		return 0, err
	}
	c.setAuth(req)
	resp, err := c.upload.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

// WebSocketURL returns the push-channel endpoint for this server.
func (c *Client) WebSocketURL(channel string, echo bool) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	query := url.Values{}
	query.Set("echo", strconv.FormatBool(echo))
	if channel = strings.TrimSpace(channel); channel != "" {
		query.Set("channel", channel)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// AuthHeader returns the credential headers for non-HTTP transports.
func (c *Client) AuthHeader() http.Header {
	header := http.Header{}
	if c.token == "" {
		return header
	}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Cookie", (&http.Cookie{Name: TokenCookie, Value: c.token}).String())
	return header
}

func (c *Client) postText(ctx context.Context, path string, query url.Values) (string, error) {
	var payload string
	err := c.do(ctx, http.MethodPost, path, query, &payload)
	return payload, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *string:
		*dst, err = readPayload(resp)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Code = errResp.Code
		apiErr.Message = strings.TrimSpace(errResp.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(errResp.Error)
		}
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

func readPayload(resp *http.Response) (string, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: c.token})
}

func idQuery(id int64) url.Values {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))
	return query
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
