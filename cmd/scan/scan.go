package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"IchimokuScanner/internal/app"
	"IchimokuScanner/internal/config"
	"IchimokuScanner/internal/export"
	"IchimokuScanner/internal/logger"
	"IchimokuScanner/internal/model"
	"IchimokuScanner/internal/scheduler"
)

const wishlistLayout = "2006-01-02_15-04"

func scanAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	wr, err := export.New(c.String("format"))
	if err != nil {
		return err
	}

	flush, err := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer flush()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := cfg.ScanParams()
	zap.L().Info("starting Ichimoku gap scan",
		zap.String("timeframe", params.Timeframe), zap.String("period", params.Period),
		zap.Float64("min_gap", params.MinGapPct), zap.Float64("proximity", params.ProximityLimitPct))

	report, scanErr := a.Scheduler(ctx).RunScan(ctx, params, scheduler.TriggerCLI)
	if report == nil {
		return scanErr
	}
	if scanErr != nil {
		zap.L().Warn("scan interrupted, writing partial results", zap.Error(scanErr))
	}

	dir := c.String("output")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, outputName(time.Now(), wr.Extension()))
	if err := export.SaveFile(wr, report, path); err != nil {
		return err
	}
	zap.L().Info("scan complete",
		zap.Int("matches", report.MatchesFound), zap.Int("scanned", report.SymbolsScanned), zap.String("saved_as", path))

	printResults(os.Stdout, report)
	return scanErr
}

// outputName is the wishlist file name for a scan finished at t.
func outputName(t time.Time, ext string) string {
	return fmt.Sprintf("wishlist_tk_gap_%s.%s", t.Format(wishlistLayout), ext)
}

func printResults(out io.Writer, r *model.ScanReport) {
	if len(r.Results) == 0 {
		fmt.Fprintln(out, "\nNo stocks matching criteria found.")
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tClose\tTenkan\tKijun\tTK Gap %\tSignal\t")
	for _, m := range r.Results {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n", m.Symbol, m.Close, m.Fast, m.Slow, m.GapPct, m.Direction)
	}
	tw.Flush()
}
