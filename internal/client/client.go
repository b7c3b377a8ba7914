// Package client talks to the dashboard REST API over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/metrics"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/observability"
	"mall-dashboard/internal/pricerange"
)

const (
	customersPath  = "/api/customers"
	frequencyPath  = "/api/purchase-frequency"
	maxErrorBody   = 4 << 10
	defaultTimeout = 10 * time.Second
)

const (
	msgCustomers = "고객 목록을 불러오는데 실패했습니다"
	msgPurchases = "고객 구매 내역을 불러오는데 실패했습니다"
	msgFrequency = "구매 빈도 데이터를 불러오는데 실패했습니다"
)

var errDecode = errors.New("malformed response")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Prefix     string
	StatusCode int
	StatusText string
}

func (e *StatusError) Error() string {
	return e.Prefix + ": " + e.StatusText
}

func newStatusError(prefix string, resp *http.Response) *StatusError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = strconv.Itoa(resp.StatusCode)
	}
	return &StatusError{Prefix: prefix, StatusCode: resp.StatusCode, StatusText: text}
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	location   *time.Location
	retryDelay time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLocation sets the zone calendar days are expanded in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.location = loc }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		location:   time.Local,
		retryDelay: 200 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Millisecond
	}
	if c.location == nil {
		c.location = time.Local
	}
	return c, nil
}

// Customers fetches the customer list. A 404 means nobody matched and is
// returned as an empty list.
func (c *Client) Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error) {
	params := url.Values{}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.Name != "" {
		params.Set("name", q.Name)
	}

	var out []models.Customer
	err := c.get(ctx, "customers", customersPath, params, msgCustomers, &out)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return []models.Customer{}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error) {
	path := customersPath + "/" + strconv.Itoa(id) + "/purchases"
	var out []models.CustomerPurchase
	if err := c.get(ctx, "customer_purchases", path, nil, msgPurchases, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PurchaseFrequency sends the range as absolute timestamps covering whole
// days. Raw "min - max" labels are mapped onto bucket labels.
func (c *Client) PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error) {
	var out []models.PriceFrequency
	if err := c.get(ctx, "purchase_frequency", frequencyPath, r.Query(c.location), msgFrequency, &out); err != nil {
		return nil, err
	}
	return pricerange.Normalize(out), nil
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, prefix string, dst any) error {
	u := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	ctx, span := observability.StartSpan(ctx, "upstream "+endpoint)
	span.SetTag("http.url", u.String())
	defer span.FinishAndLog(ctx, c.logger)

	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.fetch(ctx, endpoint, u.String(), prefix, dst)
		var statusErr *StatusError
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errDecode):
			return err
		case errors.As(err, &statusErr):
			if statusErr.StatusCode >= http.StatusInternalServerError {
				return retry.RetryableError(err)
			}
			return err
		case ctx.Err() != nil:
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		span.SetError(err)
	}
	return err
}

func (c *Client) fetch(ctx context.Context, endpoint, rawURL, prefix string, dst any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, "transport_error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.ObserveUpstream(endpoint, "http_error", time.Since(start))
		return newStatusError(prefix, resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.metrics.ObserveUpstream(endpoint, "decode_error", time.Since(start))
		return fmt.Errorf("%s: %w: %w", prefix, errDecode, err)
	}
	c.metrics.ObserveUpstream(endpoint, "ok", time.Since(start))

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%s: %w: %w", prefix, errDecode, err)
	}
	return nil
}
