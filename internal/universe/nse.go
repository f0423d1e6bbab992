package universe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"IchimokuScanner/internal/collector"
)

const (
	DefaultIndex  = "NIFTY 500"
	defaultNSEURL = "https://www.nseindia.com/api/equity-stockIndices"
	browserUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// ErrUnexpectedShape reports a constituents response without a data array.
var ErrUnexpectedShape = errors.New("unexpected universe response shape")

// NSEProvider fetches index constituents from the NSE equity-stockIndices API.
type NSEProvider struct {
	BaseURL string
	Index   string
	Suffix  string
	Client  *http.Client
}

// NewNSEProvider creates a provider for the given index (NIFTY 500 when empty).
func NewNSEProvider(baseURL, index string, timeout time.Duration) *NSEProvider {
	if baseURL == "" {
		baseURL = defaultNSEURL
	}
	if index == "" {
		index = DefaultIndex
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NSEProvider{
		BaseURL: baseURL,
		Index:   index,
		Suffix:  ".NS",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *NSEProvider) Name() string { return "nse" }

// Fetch returns the index constituents as Yahoo tickers, in response order.
// The index's own summary rows are skipped.
func (p *NSEProvider) Fetch(ctx context.Context) ([]string, error) {
	u := p.BaseURL + "?index=" + url.PathEscape(p.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collector.ErrFetch, err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: nse: %w", collector.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: nse: status %d", collector.ErrFetch, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: nse read body: %v", collector.ErrFetch, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not json", ErrUnexpectedShape)
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrUnexpectedShape)
	}

	skip := map[string]bool{strings.ToUpper(p.Index): true, "NIFTY": true, "NIFTY 500": true}
	var symbols []string
	seen := make(map[string]bool)
	data.ForEach(func(_, row gjson.Result) bool {
		sym := strings.TrimSpace(row.Get("symbol").String())
		if sym == "" || skip[strings.ToUpper(sym)] {
			return true
		}
		ticker := sym + p.Suffix
		if !seen[ticker] {
			seen[ticker] = true
			symbols = append(symbols, ticker)
		}
		return true
	})
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no constituents", ErrUnexpectedShape)
	}
	return symbols, nil
}
