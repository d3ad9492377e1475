package mushroomobserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nemfreview/internal/config"
	"nemfreview/internal/logging"
	"nemfreview/internal/metrics"
	"nemfreview/internal/services"
)

const maxResponseBytes = 4 << 20

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Mushroom Observer API2 with one API key.
type Client struct {
	baseURL         string
	apiKey          string
	userAgent       string
	copyrightHolder string
	licenseID       int
	http            HTTPDoer
	limiter         *rate.Limiter
	logger          *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLimiter shares a rate limiter between clients.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "mushroomobserver")
		}
	}
}

// NewLimiter builds the request limiter described by cfg. A non-positive
// rate disables throttling.
func NewLimiter(cfg *config.Config) *rate.Limiter {
	if cfg == nil || cfg.MushroomObserver.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.MushroomObserver.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.MushroomObserver.RequestsPerSecond), burst)
}

// New constructs a client for apiKey using the endpoint and upload defaults in cfg.
func New(cfg *config.Config, apiKey string, opts ...Option) *Client {
	defaults := config.Default()
	if cfg == nil {
		cfg = &defaults
	}
	mo := cfg.MushroomObserver
	baseURL := strings.TrimRight(strings.TrimSpace(mo.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaults.MushroomObserver.BaseURL
	}
	userAgent := strings.TrimSpace(mo.UserAgent)
	if userAgent == "" {
		userAgent = defaults.MushroomObserver.UserAgent
	}
	timeout := cfg.MOTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	licenseID := mo.LicenseID
	if licenseID <= 0 {
		licenseID = defaults.MushroomObserver.LicenseID
	}

	client := &Client{
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(apiKey),
		userAgent:       userAgent,
		copyrightHolder: strings.TrimSpace(mo.CopyrightHolder),
		licenseID:       licenseID,
		http:            &http.Client{Timeout: timeout},
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.limiter == nil {
		client.limiter = NewLimiter(cfg)
	}
	return client
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ObservationURL returns the public page for an observation.
func (c *Client) ObservationURL(id int64) string {
	return c.baseURL + "/" + strconv.FormatInt(id, 10)
}

type apiErrorEntry struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}

type envelope struct {
	Errors  []apiErrorEntry   `json:"errors"`
	Results []json.RawMessage `json:"results"`
	ID      *int64            `json:"id"`
}

// call is one API request. Form-bearing requests carry the API key in the
// body; bodiless requests use basic auth with the key as username.
type call struct {
	method      string
	path        string
	endpoint    string
	query       url.Values
	form        url.Values
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, req call) (envelope, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return envelope{}, services.Wrap(services.ErrExternal, "mushroomobserver", req.endpoint, "rate limit wait", err)
	}

	env, err := c.send(ctx, req)
	metrics.RecordExternalRequest(req.endpoint, outcome(err))
	if err != nil {
		c.logger.Debug("mushroom observer request failed",
			logging.Args(
				logging.String("endpoint", req.endpoint),
				logging.String("method", req.method),
				logging.Error(err),
			)...,
		)
	}
	return env, err
}

func (c *Client) send(ctx context.Context, req call) (envelope, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	body := req.body
	contentType := req.contentType
	if req.form != nil {
		if c.apiKey != "" {
			req.form.Set("api_key", c.apiKey)
		}
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return envelope{}, fmt.Errorf("build %s request: %w", req.endpoint, err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if body == nil && c.apiKey != "" {
		httpReq.SetBasicAuth(c.apiKey, "")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return envelope{}, services.Wrap(services.ErrExternal, "mushroomobserver", req.endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, services.Wrap(services.ErrExternal, "mushroomobserver", req.endpoint, "read response", err)
	}

	var env envelope
	parsed := len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil
	if parsed && len(env.Errors) > 0 {
		return envelope{}, classifyBodyError(req.endpoint, resp.StatusCode, env.Errors[0])
	}
	if apiErr := classifyStatus(req.endpoint, resp.StatusCode, string(raw)); apiErr != nil {
		return envelope{}, apiErr
	}
	if !parsed && len(bytes.TrimSpace(raw)) > 0 {
		return envelope{}, &APIError{
			Endpoint: req.endpoint,
			Status:   resp.StatusCode,
			Message:  "non-JSON response: " + truncate(string(raw), 200),
		}
	}
	return env, nil
}

// resultID extracts the id of the first result, which the API reports either
// as a bare number or as an object with an id field.
func resultID(endpoint string, env envelope) (int64, error) {
	if len(env.Results) == 0 {
		if env.ID != nil && *env.ID > 0 {
			return *env.ID, nil
		}
		return 0, &APIError{Endpoint: endpoint, Message: "response carried no result id"}
	}
	if id, ok := rawID(env.Results[0]); ok {
		return id, nil
	}
	return 0, &APIError{Endpoint: endpoint, Message: "could not read result id from " + truncate(string(env.Results[0]), 80)}
}

func rawID(raw json.RawMessage) (int64, bool) {
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil && id > 0 {
		return id, true
	}
	var obj struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.ID > 0 {
		return obj.ID, true
	}
	return 0, false
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
