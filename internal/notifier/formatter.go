package notifier

import (
	"fmt"
	"html"
	"strings"

	"IchimokuScanner/internal/model"
)

// FormatScanReport formats a scan summary with at most maxRows matches.
func FormatScanReport(r *model.ScanReport, maxRows int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Ichimoku TK Gap Scan</b> | %s\n\n", r.ScanTime.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Timeframe: %s | Min gap: %.2f%%\n", r.Timeframe, r.MinGap))
	b.WriteString(fmt.Sprintf("Scanned: %d | Matches: %d\n", r.SymbolsScanned, r.MatchesFound))
	if r.ID != "" {
		b.WriteString(fmt.Sprintf("ID: <code>%s</code>\n", r.ID))
	}

	if len(r.Results) == 0 {
		b.WriteString("\nNo stocks matching criteria found.\n")
		return b.String()
	}

	b.WriteString("\n<pre>")
	b.WriteString(fmt.Sprintf("%-14s %9s %7s %s\n", "Symbol", "Close", "Gap%", "Signal"))
	rows := r.Results
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, m := range rows {
		b.WriteString(fmt.Sprintf("%-14s %9.2f %7.2f %s\n",
			html.EscapeString(m.Symbol), m.Close, m.GapPct, directionIcon(m.Direction)))
	}
	b.WriteString("</pre>")
	if len(rows) < len(r.Results) {
		b.WriteString(fmt.Sprintf("\n… and %d more", len(r.Results)-len(rows)))
	}
	return b.String()
}

// FormatHistory lists stored scans, newest first.
func FormatHistory(list []model.HistorySummary) string {
	if len(list) == 0 {
		return "No scan history yet."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Scan history</b>\n\n")
	for _, s := range list {
		b.WriteString(fmt.Sprintf("<code>%s</code> %s | %s | gap ≥ %.2f%% | %d/%d\n",
			s.ID, s.ScanTime, s.Timeframe, s.MinGap, s.MatchesFound, s.SymbolsScanned))
	}
	return b.String()
}

// FormatHelp lists the supported bot commands.
func FormatHelp() string {
	return "<b>Commands</b>\n" +
		"/scan [timeframe] [min_gap] - run a scan now\n" +
		"/last - show the latest stored scan\n" +
		"/history - list stored scans\n" +
		"/status - scheduler status"
}

func directionIcon(d model.Direction) string {
	switch d {
	case model.Bullish:
		return "🟢 Bullish"
	case model.Bearish:
		return "🔴 Bearish"
	default:
		return "⚪ Neutral"
	}
}
