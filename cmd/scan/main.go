package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"IchimokuScanner/internal/config"
	"IchimokuScanner/internal/export"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ichimoku-scan",
		Usage: "scan the NSE universe for Tenkan-Kijun gap setups and save a wishlist",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath, EnvVars: []string{"CONFIG_PATH"}, Usage: "config file"},
			&cli.StringFlag{Name: "timeframe", Aliases: []string{"t"}, Usage: "bar interval: 30m, 1h, 4h, 1d"},
			&cli.StringFlag{Name: "period", Usage: "history window, e.g. 3mo"},
			&cli.Float64Flag{Name: "min-gap", Usage: "minimum Tenkan-Kijun gap %"},
			&cli.Float64Flag{Name: "proximity", Usage: "maximum distance of close from Tenkan %"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent symbol fetches"},
			&cli.StringSliceFlag{Name: "symbols", Usage: "scan these symbols instead of the index universe"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "csv", Usage: fmt.Sprintf("output format (%v)", export.Formats)},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
			&cli.BoolFlag{Name: "save-history", Usage: "also persist the report to the configured history backend"},
		},
		Action: scanAction,
	}
}

// applyFlags overlays command-line values on the loaded config.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("timeframe") {
		cfg.Scan.Timeframe = c.String("timeframe")
	}
	if c.IsSet("period") {
		cfg.Scan.Period = c.String("period")
	}
	if c.IsSet("min-gap") {
		v := c.Float64("min-gap")
		cfg.Scan.MinGapPct = &v
	}
	if c.IsSet("proximity") {
		v := c.Float64("proximity")
		cfg.Scan.ProximityLimitPct = &v
	}
	if c.IsSet("workers") {
		cfg.Scan.Workers = c.Int("workers")
	}
	if symbols := c.StringSlice("symbols"); len(symbols) > 0 {
		cfg.Universe.Symbols = symbols
	}
	if !c.Bool("save-history") {
		cfg.History.Backend = "none"
	}
}
