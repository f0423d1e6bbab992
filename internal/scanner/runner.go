package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"IchimokuScanner/internal/model"
)

const (
	DefaultWorkers       = 8
	DefaultProgressEvery = 50
)

// Progress is emitted every ProgressEvery symbols and once when the batch
// completes or stops early on cancellation.
type Progress struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Matches int    `json:"matches"`
	Symbol  string `json:"symbol"`
}

// Runner drives a Scanner over a symbol universe with a bounded worker pool.
type Runner struct {
	Scanner       *Scanner
	Workers       int
	ProgressEvery int
	OnProgress    func(Progress)
	OnOutcome     func(Outcome)
	Now           func() time.Time
}

// Run scans every symbol and returns the ranked report. Per-symbol failures
// are logged and counted as scanned. If ctx is cancelled, no further symbols
// are dispatched, in-flight ones finish, and the partial report is returned
// together with ctx.Err().
func (r *Runner) Run(ctx context.Context, symbols []string) (*model.ScanReport, error) {
	params := r.Scanner.Params
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	every := r.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	started := now()
	total := len(symbols)
	outcomes := make([]Outcome, total)

	var (
		mu      sync.Mutex
		done    int
		matched int
	)
	// in-flight symbols are not interrupted by ctx; the scanner's fetch timeout bounds them
	workCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(workers)

	dispatched := 0
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			out := r.Scanner.Scan(workCtx, symbol)
			outcomes[i] = out
			r.report(out)

			mu.Lock()
			defer mu.Unlock()
			done++
			if out.Match != nil {
				matched++
			}
			if r.OnProgress != nil && (done%every == 0 || done == total) {
				r.OnProgress(Progress{Done: done, Total: total, Matches: matched, Symbol: symbol})
			}
			return nil
		})
	}
	_ = g.Wait()
	// a cancelled batch never reaches done == total inside the workers
	if dispatched < total && r.OnProgress != nil {
		r.OnProgress(Progress{Done: done, Total: total, Matches: matched})
	}

	var results []model.MatchRecord
	for _, out := range outcomes {
		if out.Match != nil {
			results = append(results, *out.Match)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].GapPct > results[j].GapPct })

	report := &model.ScanReport{
		Timeframe:      params.Timeframe,
		MinGap:         params.MinGapPct,
		ScanTime:       started,
		SymbolsScanned: dispatched,
		MatchesFound:   len(results),
		Results:        results,
	}
	zap.L().Info("scan finished",
		zap.String("timeframe", params.Timeframe),
		zap.Int("symbols_scanned", dispatched),
		zap.Int("matches_found", len(results)),
		zap.Duration("elapsed", now().Sub(started)))

	return report, ctx.Err()
}

// Universe supplies the symbols for a batch along with the name of their source.
type Universe interface {
	Symbols(ctx context.Context) ([]string, string)
}

// RunUniverse resolves the universe and scans it.
func (r *Runner) RunUniverse(ctx context.Context, u Universe) (*model.ScanReport, error) {
	symbols, source := u.Symbols(ctx)
	zap.L().Info("scan started",
		zap.String("timeframe", r.Scanner.Params.Timeframe),
		zap.Float64("min_gap", r.Scanner.Params.MinGapPct),
		zap.Int("symbols", len(symbols)),
		zap.String("universe_source", source))
	return r.Run(ctx, symbols)
}

func (r *Runner) report(out Outcome) {
	switch {
	case out.Err != nil:
		zap.L().Warn("symbol scan failed", zap.String("symbol", out.Symbol), zap.Error(out.Err))
	case out.Skipped != "":
		zap.L().Debug("symbol skipped", zap.String("symbol", out.Symbol), zap.String("reason", out.Skipped))
	}
	if r.OnOutcome != nil {
		r.OnOutcome(out)
	}
}
