// Package oracle reads the reference price from a Pyth-style
// latest_price_feeds endpoint and normalizes it to ledger micro-units.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roundkeeper/internal/cache"
	"roundkeeper/internal/metrics"
)

const defaultCacheTTL = time.Second

type Client struct {
	host       string
	feedID     string
	httpClient *http.Client

	Cache    cache.Store
	CacheTTL time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Keeper
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price source error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, feedID string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if host == "" {
		host = "https://hermes.pyth.network"
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		feedID:     strings.TrimSpace(feedID),
		httpClient: httpClient,
		CacheTTL:   defaultCacheTTL,
	}
}

func (c *Client) FeedID() string {
	if c == nil {
		return ""
	}
	return c.feedID
}

// FetchCurrentPrice returns the current reference price. A reading may be
// served from cache for up to CacheTTL.
func (c *Client) FetchCurrentPrice(ctx context.Context) (Price, error) {
	if c == nil || c.httpClient == nil {
		return Price{}, fmt.Errorf("%w: client is nil", ErrUnavailable)
	}
	if c.feedID == "" {
		return Price{}, fmt.Errorf("%w: feed id is not configured", ErrUnavailable)
	}
	if p, ok := c.cached(ctx); ok {
		c.Metrics.ObserveOracle("cached")
		return p, nil
	}

	body, err := c.doRequest(ctx, "/api/latest_price_feeds", url.Values{"ids[]": []string{c.feedID}})
	if err != nil {
		c.Metrics.ObserveOracle("unavailable")
		return Price{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p, err := parseLatestPriceFeeds(body)
	if err != nil {
		switch {
		case errors.Is(err, ErrPriceInvalid):
			c.Metrics.ObserveOracle("invalid")
		default:
			c.Metrics.ObserveOracle("malformed")
		}
		return Price{}, err
	}
	if p.FeedID == "" {
		p.FeedID = c.feedID
	}
	c.Metrics.ObserveOracle("ok")
	c.store(ctx, p)
	if c.Logger != nil {
		c.Logger.Debug("oracle price fetched",
			zap.String("feed_id", p.FeedID),
			zap.String("price", p.Value.String()),
			zap.Uint64("micro", p.Micro),
		)
	}
	return p, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) cacheKey() string {
	return "oracle:price:" + c.feedID
}

func (c *Client) cached(ctx context.Context) (Price, bool) {
	if c.Cache == nil || c.CacheTTL <= 0 {
		return Price{}, false
	}
	raw, ok, err := c.Cache.Get(ctx, c.cacheKey())
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("oracle cache read failed", zap.Error(err))
		}
		return Price{}, false
	}
	if !ok {
		return Price{}, false
	}
	var p Price
	if err := json.Unmarshal(raw, &p); err != nil || p.Micro == 0 {
		return Price{}, false
	}
	return p, true
}

func (c *Client) store(ctx context.Context, p Price) {
	if c.Cache == nil || c.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.Cache.Set(ctx, c.cacheKey(), raw, c.CacheTTL); err != nil && c.Logger != nil {
		c.Logger.Warn("oracle cache write failed", zap.Error(err))
	}
}

type priceFeed struct {
	ID    string     `json:"id"`
	Price *feedPrice `json:"price"`
}

type feedPrice struct {
	Price       json.RawMessage `json:"price"`
	Expo        *int32          `json:"expo"`
	PublishTime int64           `json:"publish_time"`
}

func parseLatestPriceFeeds(body []byte) (Price, error) {
	var feeds []json.RawMessage
	if err := json.Unmarshal(body, &feeds); err != nil {
		return Price{}, fmt.Errorf("%w: expected an array of price feeds", ErrMalformed)
	}
	if len(feeds) == 0 {
		return Price{}, fmt.Errorf("%w: no price data received", ErrMalformed)
	}
	var feed priceFeed
	if err := json.Unmarshal(feeds[0], &feed); err != nil {
		return Price{}, fmt.Errorf("%w: invalid price feed: %v", ErrMalformed, err)
	}
	if feed.Price == nil || len(feed.Price.Price) == 0 || feed.Price.Expo == nil {
		return Price{}, fmt.Errorf("%w: price feed is missing price or expo", ErrMalformed)
	}
	mantissa, err := parseMantissa(feed.Price.Price)
	if err != nil {
		return Price{}, err
	}
	value := mantissa.Shift(*feed.Price.Expo)
	micro, err := ToMicro(value)
	if err != nil {
		return Price{}, err
	}
	return Price{
		FeedID:      feed.ID,
		Value:       value,
		Micro:       micro,
		PublishTime: feed.Price.PublishTime,
	}, nil
}

func parseMantissa(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty price mantissa", ErrMalformed)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: non-numeric price %q", ErrMalformed, s)
	}
	return d, nil
}
