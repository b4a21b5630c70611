package data

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/backtester/internal/bar"
)

// HTTPProvider fetches bars from a JSON HTTP endpoint through a resty
// client. It expects
// GET {BaseURL}/bars?code=..&exchange=..&start=..&end=.. to return a JSON
// array of {date, open, high, low, close, volume}.
type HTTPProvider struct {
	client  *resty.Client
	BaseURL string
}

// NewHTTPProvider constructs a provider against baseURL with a bounded
// request timeout.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2)
	return &HTTPProvider{client: client, BaseURL: baseURL}
}

type httpBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

func (p *HTTPProvider) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	var rows []httpBar
	resp, err := p.client.R().
		SetQueryParams(map[string]string{
			"code":     code,
			"exchange": exchange,
			"start":    start.Format("2006-01-02"),
			"end":      end.Format("2006-01-02"),
		}).
		SetResult(&rows).
		Get("/bars")
	if err != nil {
		return nil, fmt.Errorf("http provider: fetch %s: %w", code, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http provider: fetch %s: status %d", code, resp.StatusCode())
	}

	out := make([]bar.Bar, 0, len(rows))
	for _, r := range rows {
		d, err := time.ParseInLocation("2006-01-02", r.Date, time.UTC)
		if err != nil {
			continue
		}
		out = append(out, bar.Bar{
			Code: code, Exchange: exchange, Date: d,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return out, nil
}

func (p *HTTPProvider) ListSymbols(exchange string) ([]string, error) {
	var symbols []string
	resp, err := p.client.R().
		SetQueryParam("exchange", exchange).
		SetResult(&symbols).
		Get("/symbols")
	if err != nil {
		return nil, fmt.Errorf("http provider: list symbols: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http provider: list symbols: status %d", resp.StatusCode())
	}
	return symbols, nil
}
