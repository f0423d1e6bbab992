package scanner

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"IchimokuScanner/internal/collector"
	"IchimokuScanner/internal/model"
)

// setupBars builds n bars whose last 9 span [recentLow, recentHigh] and whose
// earlier bars span [oldLow, oldHigh]. The last close is set explicitly.
func setupBars(n int, oldHigh, oldLow, recentHigh, recentLow, close float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	start := time.Date(2024, 5, 6, 9, 15, 0, 0, time.UTC)
	for i := range bars {
		h, l := oldHigh, oldLow
		if i >= n-9 {
			h, l = recentHigh, recentLow
		}
		bars[i] = model.OHLCV{Time: start.Add(time.Duration(i) * time.Hour), Open: (h + l) / 2, High: h, Low: l, Close: (h + l) / 2}
	}
	bars[n-1].Close = close
	return bars
}

// fast = 100, slow = 95.5, gap ~4.71%
func bullishNearTenkan() []model.OHLCV { return setupBars(30, 96, 90, 101, 99, 100.2) }

// fast = 100, slow = 104.5, gap ~4.31%
func bearishNearTenkan() []model.OHLCV { return setupBars(30, 110, 104, 101, 99, 99.8) }

func TestEvaluateSeries_Match(t *testing.T) {
	s := &model.PriceSeries{Symbol: "ABC.NS", Bars: bullishNearTenkan()}
	match, metrics, err := EvaluateSeries(s, DefaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatalf("expected match, metrics %+v", metrics)
	}
	want := model.MatchRecord{Symbol: "ABC.NS", Close: 100.2, Fast: 100, Slow: 95.5, GapPct: 4.71, Direction: model.Bullish}
	if *match != want {
		t.Errorf("got %+v, want %+v", *match, want)
	}
	if math.Abs(metrics.GapPct-4.5/95.5*100) > 1e-9 {
		t.Errorf("metrics should keep full precision, got %v", metrics.GapPct)
	}
}

func TestEvaluateSeries_Bearish(t *testing.T) {
	s := &model.PriceSeries{Symbol: "XYZ.NS", Bars: bearishNearTenkan()}
	match, _, err := EvaluateSeries(s, DefaultParams())
	if err != nil || match == nil {
		t.Fatalf("expected bearish match, got %v, %v", match, err)
	}
	if match.Direction != model.Bearish || match.GapPct != 4.31 {
		t.Errorf("unexpected record %+v", *match)
	}
}

func TestEvaluateSeries_BothConditionsRequired(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name   string
		bars   []model.OHLCV
		minGap float64
		match  bool
	}{
		{"both hold", bullishNearTenkan(), 3.0, true},
		{"gap only, price far from tenkan", setupBars(30, 96, 90, 101, 99, 101), 3.0, false},
		{"proximity only, gap too small", bullishNearTenkan(), 5.0, false},
		{"gap at threshold", bullishNearTenkan(), exactGap(t, bullishNearTenkan()), true},
	}
	for _, tt := range tests {
		p.MinGapPct = tt.minGap
		match, _, err := EvaluateSeries(&model.PriceSeries{Symbol: "T", Bars: tt.bars}, p)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if (match != nil) != tt.match {
			t.Errorf("%s: match=%v, want %v", tt.name, match != nil, tt.match)
		}
	}
}

func exactGap(t *testing.T, bars []model.OHLCV) float64 {
	t.Helper()
	p := DefaultParams()
	p.MinGapPct = 0
	_, m, err := EvaluateSeries(&model.PriceSeries{Bars: bars}, p)
	if err != nil {
		t.Fatal(err)
	}
	return m.GapPct
}

func TestEvaluateSeries_InsufficientData(t *testing.T) {
	p := DefaultParams()
	_, _, err := EvaluateSeries(&model.PriceSeries{Bars: setupBars(29, 96, 90, 101, 99, 100)}, p)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for 29 bars, got %v", err)
	}

	// enough bars by count but the slow line is undefined
	p.MinDataPoints = 10
	_, _, err = EvaluateSeries(&model.PriceSeries{Bars: setupBars(20, 96, 90, 101, 99, 100)}, p)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for undefined kijun, got %v", err)
	}

	if _, _, err := EvaluateSeries(nil, p); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for nil series, got %v", err)
	}
}

func TestScanner_Scan(t *testing.T) {
	boom := errors.New("connection reset")
	f := &collector.MockFetcher{
		Bars: map[string][]model.OHLCV{
			"MATCH.NS": bullishNearTenkan(),
			"SHORT.NS": bullishNearTenkan()[:10],
			"ZERO.NS":  setupBars(30, 0, 0, 0, 0, 0),
		},
		Errors: map[string]error{"DOWN.NS": boom},
	}
	s := &Scanner{Fetcher: f, Params: DefaultParams(), FetchTimeout: time.Second}

	out := s.Scan(context.Background(), "MATCH.NS")
	if out.Match == nil || out.Err != nil || out.Metrics == nil {
		t.Errorf("expected match, got %+v", out)
	}

	out = s.Scan(context.Background(), "SHORT.NS")
	if out.Match != nil || out.Err != nil || out.Skipped == "" {
		t.Errorf("expected skipped outcome, got %+v", out)
	}

	out = s.Scan(context.Background(), "DOWN.NS")
	if !errors.Is(out.Err, collector.ErrFetch) || !errors.Is(out.Err, boom) {
		t.Errorf("expected fetch error, got %+v", out)
	}

	out = s.Scan(context.Background(), "ZERO.NS")
	if out.Err == nil || out.Match != nil {
		t.Errorf("expected evaluation error for zero prices, got %+v", out)
	}
}

func TestScanner_FetchTimeout(t *testing.T) {
	f := &collector.MockFetcher{Delay: time.Second}
	s := &Scanner{Fetcher: f, Params: DefaultParams(), FetchTimeout: 20 * time.Millisecond}
	out := s.Scan(context.Background(), "SLOW.NS")
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("expected timeout error, got %+v", out)
	}
}

func TestParams_Validate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"timeframe", func(p *Params) { p.Timeframe = "2h" }},
		{"negative gap", func(p *Params) { p.MinGapPct = -1 }},
		{"gap over 100", func(p *Params) { p.MinGapPct = 100.5 }},
		{"proximity over 100", func(p *Params) { p.ProximityLimitPct = 101 }},
		{"NaN gap", func(p *Params) { p.MinGapPct = math.NaN() }},
		{"NaN proximity", func(p *Params) { p.ProximityLimitPct = math.NaN() }},
		{"infinite gap", func(p *Params) { p.MinGapPct = math.Inf(1) }},
		{"negative infinite proximity", func(p *Params) { p.ProximityLimitPct = math.Inf(-1) }},
		{"zero window", func(p *Params) { p.FastWindow = 0 }},
		{"zero min bars", func(p *Params) { p.MinDataPoints = 0 }},
		{"empty period", func(p *Params) { p.Period = "" }},
	}
	for _, tt := range tests {
		p := DefaultParams()
		tt.mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", tt.name, err)
		}
	}
}

func mixedFetcher() *collector.MockFetcher {
	return &collector.MockFetcher{
		Bars: map[string][]model.OHLCV{
			"A.NS": bullishNearTenkan(),
			"C.NS": bearishNearTenkan(),
			"D.NS": bullishNearTenkan()[:12],
			"E.NS": setupBars(30, 96, 90, 101, 99, 101),
			// fast = 100, slow = 93, gap ~7.53%
			"F.NS": setupBars(30, 96, 85, 101, 99, 100.1),
		},
		Errors: map[string]error{"B.NS": errors.New("network unreachable")},
	}
}

func TestRunner_FailingSymbolIsolated(t *testing.T) {
	r := &Runner{
		Scanner: &Scanner{Fetcher: mixedFetcher(), Params: DefaultParams()},
		Workers: 3,
		Now:     func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local) },
	}
	symbols := []string{"A.NS", "B.NS", "C.NS", "D.NS", "E.NS", "F.NS"}
	report, err := r.Run(context.Background(), symbols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SymbolsScanned != 6 {
		t.Errorf("expected 6 symbols scanned, got %d", report.SymbolsScanned)
	}
	if report.MatchesFound != 3 || len(report.Results) != 3 {
		t.Fatalf("expected 3 matches, got %d (%v)", report.MatchesFound, report.Results)
	}
	var got []string
	for _, m := range report.Results {
		got = append(got, m.Symbol)
	}
	if want := []string{"F.NS", "A.NS", "C.NS"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected ranking %v, got %v", want, got)
	}
	if report.Timeframe != "1h" || report.MinGap != 3.0 {
		t.Errorf("unexpected report header %+v", report)
	}
	if !report.ScanTime.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)) {
		t.Errorf("unexpected scan time %v", report.ScanTime)
	}
}

// panickyFetcher blows up on one symbol and delegates the rest.
type panickyFetcher struct {
	*collector.MockFetcher
	bad string
}

func (f panickyFetcher) FetchSeries(ctx context.Context, symbol, interval, period string) (*model.PriceSeries, error) {
	if symbol == f.bad {
		var m map[string]int
		m[symbol]++
	}
	return f.MockFetcher.FetchSeries(ctx, symbol, interval, period)
}

func TestRunner_PanickingSymbolIsolated(t *testing.T) {
	var mu sync.Mutex
	var failed []Outcome
	r := &Runner{
		Scanner: &Scanner{Fetcher: panickyFetcher{MockFetcher: mixedFetcher(), bad: "BAD.NS"}, Params: DefaultParams()},
		Workers: 2,
		OnOutcome: func(o Outcome) {
			if o.Err != nil {
				mu.Lock()
				failed = append(failed, o)
				mu.Unlock()
			}
		},
	}
	report, err := r.Run(context.Background(), []string{"A.NS", "BAD.NS", "C.NS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SymbolsScanned != 3 {
		t.Errorf("expected 3 symbols scanned, got %d", report.SymbolsScanned)
	}
	if report.MatchesFound != 2 {
		t.Errorf("expected 2 matches, got %d (%v)", report.MatchesFound, report.Results)
	}
	if len(failed) != 1 || failed[0].Symbol != "BAD.NS" || !errors.Is(failed[0].Err, ErrScanPanic) {
		t.Errorf("expected one recovered panic for BAD.NS, got %+v", failed)
	}
}

func TestRunner_DeterministicRanking(t *testing.T) {
	var symbols []string
	bars := map[string][]model.OHLCV{}
	for i := 0; i < 40; i++ {
		sym := string(rune('A'+i%26)) + string(rune('a'+i/26)) + ".NS"
		symbols = append(symbols, sym)
		// ties on every other pair exercise the stable sort
		oldLow := 90 - float64(i/2)
		bars[sym] = setupBars(30, 96, oldLow, 101, 99, 100.1)
	}
	var first []model.MatchRecord
	for run := 0; run < 5; run++ {
		r := &Runner{
			Scanner: &Scanner{Fetcher: &collector.MockFetcher{Bars: bars}, Params: DefaultParams()},
			Workers: 7,
		}
		report, err := r.Run(context.Background(), symbols)
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(report.Results); i++ {
			if report.Results[i].GapPct > report.Results[i-1].GapPct {
				t.Fatalf("results not sorted at %d", i)
			}
		}
		if run == 0 {
			first = report.Results
			continue
		}
		if !reflect.DeepEqual(first, report.Results) {
			t.Fatalf("run %d produced a different ranking", run)
		}
	}
	if len(first) != 40 {
		t.Errorf("expected all 40 symbols to match, got %d", len(first))
	}
	// within a tie, universe order is kept
	if first[0].Symbol != "Mb.NS" || first[1].Symbol != "Nb.NS" {
		t.Errorf("expected tied leaders in universe order, got %s, %s", first[0].Symbol, first[1].Symbol)
	}
}

func TestRunner_Progress(t *testing.T) {
	var mu sync.Mutex
	var events []Progress
	r := &Runner{
		Scanner:       &Scanner{Fetcher: mixedFetcher(), Params: DefaultParams()},
		Workers:       2,
		ProgressEvery: 2,
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	}
	if _, err := r.Run(context.Background(), []string{"A.NS", "B.NS", "C.NS", "D.NS", "E.NS"}); err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 progress events, got %d: %+v", len(events), events)
	}
	for i, want := range []int{2, 4, 5} {
		if events[i].Done != want || events[i].Total != 5 {
			t.Errorf("event %d: %+v", i, events[i])
		}
	}
	if events[2].Matches != 2 {
		t.Errorf("expected 2 matches at completion, got %d", events[2].Matches)
	}
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := mixedFetcher()
	r := &Runner{Scanner: &Scanner{Fetcher: f, Params: DefaultParams()}}
	report, err := r.Run(ctx, []string{"A.NS", "C.NS"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if report == nil || report.SymbolsScanned != 0 {
		t.Errorf("expected empty partial report, got %+v", report)
	}
	if len(f.Calls()) != 0 {
		t.Errorf("expected no fetches after cancellation, got %v", f.Calls())
	}
}

func TestRunner_CancelledMidRunReportsProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var events []Progress
	r := &Runner{
		Scanner:       &Scanner{Fetcher: mixedFetcher(), Params: DefaultParams()},
		Workers:       1,
		ProgressEvery: 100,
		OnOutcome:     func(Outcome) { cancel() },
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	}
	report, err := r.Run(ctx, []string{"A.NS", "B.NS", "C.NS", "E.NS"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.SymbolsScanned == 0 || report.SymbolsScanned == 4 {
		t.Fatalf("expected a partial batch, got %d scanned", report.SymbolsScanned)
	}
	if len(events) != 1 {
		t.Fatalf("expected one closing progress event, got %+v", events)
	}
	if last := events[0]; last.Done != report.SymbolsScanned || last.Total != 4 {
		t.Errorf("closing event %+v does not match report (%d scanned)", last, report.SymbolsScanned)
	}
}

func TestRunner_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.MinGapPct = 150
	r := &Runner{Scanner: &Scanner{Fetcher: mixedFetcher(), Params: p}}
	if _, err := r.Run(context.Background(), []string{"A.NS"}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}

type fixedUniverse []string

func (u fixedUniverse) Symbols(context.Context) ([]string, string) { return u, "test" }

func TestRunner_RunUniverse(t *testing.T) {
	r := &Runner{Scanner: &Scanner{Fetcher: mixedFetcher(), Params: DefaultParams()}}
	report, err := r.RunUniverse(context.Background(), fixedUniverse{"A.NS", "B.NS"})
	if err != nil {
		t.Fatal(err)
	}
	if report.SymbolsScanned != 2 || report.MatchesFound != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}
