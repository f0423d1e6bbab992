package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"IchimokuScanner/internal/model"
)

const chartBody = `{"chart":{"result":[{"timestamp":[1700000000,1700003600,1700007200,1699996400],
"indicators":{"quote":[{"open":[10,11,null,9],"high":[12,13,null,10],"low":[9,10,null,8],"close":[11,12,null,9.5],"volume":[100,200,null,50]}]}}],"error":null}}`

func TestYahooFetcher_FetchSeries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL

	s, err := f.FetchSeries(context.Background(), "RELIANCE.NS", "1h", "3mo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/RELIANCE.NS" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "interval=1h") || !strings.Contains(gotQuery, "range=3mo") {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 bars after dropping null row, got %d", s.Len())
	}
	for i := 1; i < s.Len(); i++ {
		if s.Bars[i].Time.Before(s.Bars[i-1].Time) {
			t.Fatalf("bars not chronological at %d", i)
		}
	}
	if s.Bars[0].Close != 9.5 {
		t.Errorf("expected earliest bar first, got close %v", s.Bars[0].Close)
	}
}

func TestYahooFetcher_IndexSymbolEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL
	if _, err := f.FetchSeries(context.Background(), "NIFTY", "1d", "3mo"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v8/finance/chart/%5ENSEI" {
		t.Errorf("expected mapped and escaped index symbol, got %q", gotPath)
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{}`},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		}))
		f := NewYahooFetcher("", time.Second)
		f.BaseURL = srv.URL
		_, err := f.FetchSeries(context.Background(), "BAD.NS", "1h", "3mo")
		if !errors.Is(err, ErrFetch) {
			t.Errorf("%s: expected ErrFetch, got %v", tt.name, err)
		}
		srv.Close()
	}
}

func TestYahooFetcher_FourHourResampled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1h" {
			t.Errorf("expected 1h request for 4h series, got %q", r.URL.Query().Get("interval"))
		}
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL
	s, err := f.FetchSeries(context.Background(), "TCS.NS", "4h", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if s.Interval != "4h" {
		t.Errorf("expected interval 4h, got %s", s.Interval)
	}
	if s.Len() == 0 || s.Len() > 3 {
		t.Errorf("unexpected resampled length %d", s.Len())
	}
}

func hourly(day time.Time, hours int) []model.OHLCV {
	bars := make([]model.OHLCV, hours)
	for i := range bars {
		p := float64(100 + i)
		bars[i] = model.OHLCV{
			Time: day.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 10,
		}
	}
	return bars
}

func TestResample(t *testing.T) {
	day1 := time.Date(2024, 3, 4, 9, 15, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)
	bars := append(hourly(day1, 7), hourly(day2, 7)...)

	out := Resample(bars, 4)
	// 7 hourly bars per session -> groups of 4 and 3, two sessions
	if len(out) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(out))
	}
	first := out[0]
	if first.Open != 100 || first.High != 104 || first.Low != 99 || first.Close != 103.5 || first.Volume != 40 {
		t.Errorf("unexpected first group %+v", first)
	}
	if out[1].Volume != 30 {
		t.Errorf("expected short session tail of 3 bars, got volume %v", out[1].Volume)
	}
	if !out[2].Time.Equal(day2) {
		t.Errorf("expected group to restart on a new day, got %v", out[2].Time)
	}
}

func TestRESTFetcher_FetchSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("symbol") != "INFY.NS" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[{"timestamp":1700003600,"open":1,"high":2,"low":0.5,"close":1.5},
{"timestamp":1700000000,"open":1,"high":3,"low":0.7,"close":2},
{"timestamp":1700007200,"open":1,"high":null,"low":0.7,"close":2}]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", time.Second)
	s, err := f.FetchSeries(context.Background(), "INFY.NS", "1d", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", s.Len())
	}
	if s.Bars[0].High != 3 {
		t.Errorf("expected chronological ordering, got %+v", s.Bars[0])
	}

	if _, err := f.FetchSeries(context.Background(), "UNKNOWN.NS", "1d", "3mo"); !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrFetch for unknown symbol, got %v", err)
	}
}

func TestMockFetcher(t *testing.T) {
	boom := errors.New("boom")
	m := &MockFetcher{Price: 50, Count: 40, Errors: map[string]error{"BAD.NS": boom}}

	s, err := m.FetchSeries(context.Background(), "OK.NS", "1h", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 40 {
		t.Errorf("expected 40 bars, got %d", s.Len())
	}
	_, err = m.FetchSeries(context.Background(), "BAD.NS", "1h", "3mo")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, boom) {
		t.Errorf("expected wrapped ErrFetch and cause, got %v", err)
	}
	if calls := m.Calls(); len(calls) != 2 || calls[1] != "BAD.NS" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestYahooFetcher_ExchangeTimezone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"exchangeTimezoneName":"Nowhere/Unknown","gmtoffset":19800},
"timestamp":[1700000000],"indicators":{"quote":[{"open":[1],"high":[2],"low":[0.5],"close":[1.5],"volume":[null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", time.Second)
	f.BaseURL = srv.URL
	s, err := f.FetchSeries(context.Background(), "SBIN.NS", "1h", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 bar with null volume kept, got %d", s.Len())
	}
	if _, off := s.Bars[0].Time.Zone(); off != 19800 {
		t.Errorf("expected +05:30 exchange offset, got %d", off)
	}
}
