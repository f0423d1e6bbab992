package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"IchimokuScanner/internal/collector"
	"IchimokuScanner/internal/history"
	"IchimokuScanner/internal/metrics"
	"IchimokuScanner/internal/model"
	"IchimokuScanner/internal/notifier"
	"IchimokuScanner/internal/scanner"
)

// Triggers label where a scan was started from.
const (
	TriggerCron     = "cron"
	TriggerAPI      = "api"
	TriggerTelegram = "telegram"
	TriggerCLI      = "cli"
)

// Scheduler runs scans on a cron schedule and on demand, persisting every
// report and notifying scheduled results.
type Scheduler struct {
	Cron     *cron.Cron
	Fetcher  collector.Fetcher
	Universe scanner.Universe
	Store    history.Store
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
	Defaults scanner.Params

	Workers       int
	ProgressEvery int
	FetchTimeout  time.Duration
	OnProgress    func(scanner.Progress)

	Ctx context.Context

	mu      sync.Mutex
	running int
	entry   cron.EntryID
	last    *model.HistorySummary
	lastErr string
}

// Status is the scanner state reported by /api/status and /status.
type Status struct {
	Running     bool                  `json:"running"`
	ActiveScans int                   `json:"active_scans"`
	DataSource  string                `json:"data_source"`
	Defaults    StatusDefaults        `json:"defaults"`
	Timeframes  []scanner.Timeframe   `json:"timeframes"`
	LastScan    *model.HistorySummary `json:"last_scan,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
	NextRun     string                `json:"next_run,omitempty"`
}

// StatusDefaults echoes the configured scan parameters.
type StatusDefaults struct {
	Timeframe         string  `json:"timeframe"`
	Period            string  `json:"period"`
	MinGapPct         float64 `json:"min_gap"`
	ProximityLimitPct float64 `json:"proximity_limit"`
	FastWindow        int     `json:"tenkan_period"`
	SlowWindow        int     `json:"kijun_period"`
	MinDataPoints     int     `json:"min_data_points"`
}

// NewScheduler creates a new Scheduler. Overlapping cron runs are skipped.
func NewScheduler(ctx context.Context, fetcher collector.Fetcher, universe scanner.Universe, store history.Store, n notifier.Notifier, m *metrics.Metrics, defaults scanner.Params) *Scheduler {
	if n == nil {
		n = notifier.Noop{}
	}
	if store == nil {
		store = history.NewNoopStore()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Fetcher:  fetcher,
		Universe: universe,
		Store:    store,
		Notifier: n,
		Metrics:  m,
		Defaults: defaults,
		Ctx:      ctx,
	}
}

// Register adds the periodic scan. An empty cron expression disables it.
func (s *Scheduler) Register(scanCron string) error {
	if scanCron == "" {
		zap.L().Info("scan_cron not set, periodic scans disabled")
		return nil
	}
	id, err := s.Cron.AddFunc(scanCron, s.scheduledScan)
	if err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()
	zap.L().Info("periodic scan registered", zap.String("cron", scanCron))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	zap.L().Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	zap.L().Info("scheduler stopped")
}

// RunScanNow executes the scheduled task immediately (RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scheduledScan()
}

func (s *Scheduler) scheduledScan() {
	zap.L().Info("running scheduled scan")
	report, err := s.RunScan(s.Ctx, s.Defaults, TriggerCron)
	if err != nil && report == nil {
		zap.L().Error("scheduled scan failed", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ Scheduled scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatScanReport(report, 20))
}

// RunScan scans the universe with params, then saves the report. A report is
// returned whenever the batch ran, even if ctx was cancelled part way.
func (s *Scheduler) RunScan(ctx context.Context, params scanner.Params, trigger string) (*model.ScanReport, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.running++
	s.mu.Unlock()
	if s.Metrics != nil {
		s.Metrics.ScanInProgress.Inc()
	}
	defer func() {
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
		if s.Metrics != nil {
			s.Metrics.ScanInProgress.Dec()
		}
	}()

	runner := &scanner.Runner{
		Scanner: &scanner.Scanner{
			Fetcher:      s.Fetcher,
			Params:       params,
			FetchTimeout: s.FetchTimeout,
		},
		Workers:       s.Workers,
		ProgressEvery: s.ProgressEvery,
		OnProgress:    s.progress,
	}
	if s.Metrics != nil {
		runner.OnOutcome = s.Metrics.ObserveOutcome
	}

	started := time.Now()
	report, err := runner.RunUniverse(ctx, s.Universe)
	if report == nil {
		s.setLast(nil, err)
		return nil, err
	}
	if _, saveErr := s.Store.Save(context.WithoutCancel(ctx), report); saveErr != nil {
		zap.L().Error("save scan history", zap.Error(saveErr))
	}
	if s.Metrics != nil {
		s.Metrics.ObserveReport(report, trigger, time.Since(started))
	}
	s.setLast(report, err)
	return report, err
}

func (s *Scheduler) progress(p scanner.Progress) {
	zap.L().Info("scan progress",
		zap.Int("done", p.Done), zap.Int("total", p.Total), zap.Int("matches", p.Matches))
	if s.OnProgress != nil {
		s.OnProgress(p)
	}
}

func (s *Scheduler) setLast(report *model.ScanReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report != nil {
		sum := report.Summary()
		s.last = &sum
	}
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:     s.running > 0,
		ActiveScans: s.running,
		Defaults: StatusDefaults{
			Timeframe:         s.Defaults.Timeframe,
			Period:            s.Defaults.Period,
			MinGapPct:         s.Defaults.MinGapPct,
			ProximityLimitPct: s.Defaults.ProximityLimitPct,
			FastWindow:        s.Defaults.FastWindow,
			SlowWindow:        s.Defaults.SlowWindow,
			MinDataPoints:     s.Defaults.MinDataPoints,
		},
		Timeframes: scanner.Timeframes,
		LastScan:   s.last,
		LastError:  s.lastErr,
	}
	if s.Fetcher != nil {
		st.DataSource = s.Fetcher.Name()
	}
	if s.entry != 0 {
		if next := s.Cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = next.Format(model.ScanTimeLayout)
		}
	}
	return st
}

// HandleCommand processes a Telegram command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	switch strings.ToLower(fields[0]) {
	case "/scan":
		params, err := s.parseScanArgs(fields[1:])
		if err != nil {
			return "❌ " + err.Error()
		}
		report, err := s.RunScan(ctx, params, TriggerTelegram)
		if report == nil {
			return fmt.Sprintf("❌ Scan failed: %v", err)
		}
		return notifier.FormatScanReport(report, 20)
	case "/last":
		list, err := s.Store.List(ctx)
		if err != nil || len(list) == 0 {
			return "No scan history yet."
		}
		report, err := s.Store.Get(ctx, list[0].ID)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatScanReport(report, 20)
	case "/history":
		list, err := s.Store.List(ctx)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatHistory(list)
	case "/status":
		return formatStatus(s.Status())
	default:
		return notifier.FormatHelp()
	}
}

// parseScanArgs reads "/scan [timeframe] [min_gap]" on top of the defaults.
func (s *Scheduler) parseScanArgs(args []string) (scanner.Params, error) {
	var timeframe, minGap string
	if len(args) > 0 {
		timeframe = args[0]
	}
	if len(args) > 1 {
		minGap = args[1]
	}
	return s.Defaults.WithRequest(timeframe, minGap)
}

func formatStatus(st Status) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Scanner status</b>\n\n")
	b.WriteString(fmt.Sprintf("Running: %v (%d active)\n", st.Running, st.ActiveScans))
	b.WriteString(fmt.Sprintf("Data source: %s\n", st.DataSource))
	b.WriteString(fmt.Sprintf("Defaults: %s, gap ≥ %.2f%%, proximity ≤ %.2f%%\n",
		st.Defaults.Timeframe, st.Defaults.MinGapPct, st.Defaults.ProximityLimitPct))
	if st.LastScan != nil {
		b.WriteString(fmt.Sprintf("Last scan: %s (%d matches)\n", st.LastScan.ScanTime, st.LastScan.MatchesFound))
	}
	if st.LastError != "" {
		b.WriteString(fmt.Sprintf("Last error: %s\n", st.LastError))
	}
	if st.NextRun != "" {
		b.WriteString(fmt.Sprintf("Next run: %s\n", st.NextRun))
	}
	return b.String()
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Notify(s.Ctx, text); err != nil {
		zap.L().Error("send notification", zap.Error(err))
	}
}
