package binance

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/market"

	"github.com/tidwall/gjson"
)

// restClient issues raw kline GETs against whichever endpoint the pool has
// selected. It stays SDK-free on purpose: the retry policy needs raw status
// codes, the Retry-After header and per-attempt header control.
type restClient struct {
	http *http.Client
	rng  *rand.Rand
}

func newRESTClient(cfg Config, rng *rand.Rand) (*restClient, error) {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || baseTransport == nil {
		return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
	}
	transport := baseTransport.Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	transport.ResponseHeaderTimeout = cfg.ReadTimeout
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	client := &http.Client{
		Transport: transport,
		// Hard ceiling on the whole exchange so no attempt can block forever.
		Timeout: cfg.ConnectTimeout + 2*cfg.ReadTimeout,
	}
	return &restClient{http: client, rng: rng}, nil
}

// Klines fetches one window of candles from ep. All failures come back as
// *FetchError so the classifier never inspects error text.
func (c *restClient) Klines(ctx context.Context, ep Endpoint, symbol, interval string, startMs, endMs int64, limit int) ([]market.Candle, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("endTime", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(limit))
	reqURL := strings.TrimSuffix(ep.BaseURL, "/") + ep.KlinePath() + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Endpoint: ep.Host(), Err: err}
	}
	applyBrowserHeaders(req, c.rng)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Endpoint: ep.Host(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{
			Kind:       KindHTTP,
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Endpoint:   ep.Host(),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Endpoint: ep.Host(), Err: err}
	}
	candles, err := decodeKlines(body)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, Endpoint: ep.Host(), Err: err}
	}
	return candles, nil
}

// decodeKlines parses the provider's array-of-arrays kline payload:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades,
// ...extras]. Only the trade count is kept from the extras.
func decodeKlines(body []byte) ([]market.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("response is not a JSON array")
	}
	rows := parsed.Array()
	out := make([]market.Candle, 0, len(rows))
	for i, row := range rows {
		if !row.IsArray() {
			return nil, fmt.Errorf("row %d is not an array", i)
		}
		cols := row.Array()
		if len(cols) < 7 {
			return nil, fmt.Errorf("row %d has %d fields, want >= 7", i, len(cols))
		}
		openTime := cols[0].Int()
		if openTime <= 0 {
			return nil, fmt.Errorf("row %d has invalid open time", i)
		}
		c := market.Candle{
			OpenTime:  openTime,
			Open:      cols[1].Float(),
			High:      cols[2].Float(),
			Low:       cols[3].Float(),
			Close:     cols[4].Float(),
			Volume:    cols[5].Float(),
			CloseTime: cols[6].Int(),
		}
		if len(cols) > 8 {
			c.Trades = cols[8].Int()
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
