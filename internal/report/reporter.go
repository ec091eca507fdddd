// Package report writes strategy performance reports to disk and console.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
)

const (
	SummaryFile    = "summary.txt"
	StrategiesFile = "strategies.csv"
	MonthlyFile    = "monthly.csv"
	JSONFile       = "report.json"
)

// Reporter generates performance reports for an overview.
type Reporter struct {
	overview   analytics.Overview
	filter     analytics.Filter
	outputPath string
}

// NewReporter creates a new reporter writing into outputPath.
func NewReporter(overview analytics.Overview, filter analytics.Filter, outputPath string) *Reporter {
	return &Reporter{
		overview:   overview,
		filter:     filter,
		outputPath: outputPath,
	}
}

// EquityFile returns the equity curve file name of a strategy.
func EquityFile(strategyID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strategyID)
	return "equity_" + safe + ".csv"
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	// Create output directory
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateStrategies(); err != nil {
		return err
	}
	if err := r.generateMonthly(); err != nil {
		return err
	}
	for _, m := range append([]analytics.StrategyMetrics{r.overview.Totals}, r.overview.Strategies...) {
		if err := r.generateEquity(m); err != nil {
			return err
		}
	}
	return r.generateJSONReport()
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	o := r.overview
	t := o.Totals

	fmt.Fprintf(w, "STRATEGY PERFORMANCE SUMMARY\n")
	fmt.Fprintf(w, "============================\n\n")

	fmt.Fprintf(w, "Period: %s to %s\n", orDash(o.DateRange.Min), orDash(o.DateRange.Max))
	fmt.Fprintf(w, "Assets: %s\n", assetLabel(r.filter))
	fmt.Fprintf(w, "Generated: %s\n\n", o.GeneratedAt.UTC().Format(time.RFC3339))

	fmt.Fprintf(w, "PORTFOLIO\n")
	fmt.Fprintf(w, "---------\n")
	writeMetrics(w, t)

	if len(o.Strategies) > 0 {
		fmt.Fprintf(w, "\nSTRATEGIES\n")
		fmt.Fprintf(w, "----------\n")
		for _, m := range o.Strategies {
			fmt.Fprintf(w, "%s: %d trades, %.2f%% win rate, $%.2f PnL, %s max drawdown\n",
				m.StrategyName, m.TotalTrades, m.WinRate*100, m.PnL, drawdownLabel(m))
		}
	}

	if len(o.Monthly) > 0 {
		fmt.Fprintf(w, "\nMONTHLY RETURNS\n")
		fmt.Fprintf(w, "---------------\n")
		for _, m := range o.Monthly {
			fmt.Fprintf(w, "%s: $%.2f over %d trades (%.2f%% win rate, %.2f%% max drawdown)\n",
				m.Month, m.Return, m.Trades, m.WinRate*100, m.MaxDrawdown*100)
		}
	}

	if len(o.Yearly) > 0 {
		fmt.Fprintf(w, "\nYEARLY\n")
		fmt.Fprintf(w, "------\n")
		for _, y := range o.Yearly {
			fmt.Fprintf(w, "%s: $%.2f, best %s ($%.2f), worst %s ($%.2f), %.0f%% positive months, $%.2f avg, $%.2f volatility\n",
				y.Year, y.Return, y.BestMonth, y.BestMonthReturn, y.WorstMonth, y.WorstMonthReturn,
				y.PositiveMonths*100, y.AvgMonthlyReturn, y.MonthlyVolatility)
		}
	}
}

func writeMetrics(w io.Writer, m analytics.StrategyMetrics) {
	fmt.Fprintf(w, "Total PnL: $%.2f\n", m.PnL)
	fmt.Fprintf(w, "Total Trades: %d\n", m.TotalTrades)
	fmt.Fprintf(w, "Win Rate: %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Max Drawdown: %s\n", drawdownLabel(m))
	fmt.Fprintf(w, "Sharpe Ratio: %.2f\n", m.Risk.SharpeRatio)
	fmt.Fprintf(w, "Profit Factor: %.2f\n", m.Risk.ProfitFactor)
	fmt.Fprintf(w, "Recovery Factor: %.2f\n", m.Risk.RecoveryFactor)
	fmt.Fprintf(w, "Ulcer Index: %.2f\n", m.Risk.UlcerIndex)
	fmt.Fprintf(w, "Sterling Ratio: %.2f\n", m.Risk.SterlingRatio)
	fmt.Fprintf(w, "Value at Risk (95%%): $%.2f\n", m.Risk.ValueAtRisk95)
	fmt.Fprintf(w, "Expected Shortfall: $%.2f\n", m.Risk.ExpectedShortfall95)
	fmt.Fprintf(w, "Max Consecutive Losses: %d\n", m.Risk.MaxConsecutiveLosses)
}

func drawdownLabel(m analytics.StrategyMetrics) string {
	dd := m.MaxDrawdown
	if !dd.HasTrough() {
		return fmt.Sprintf("%.2f%%", dd.Percent())
	}
	return fmt.Sprintf("%.2f%% (%s to %s)", dd.Percent(), orDash(dd.PeakDate), orDash(dd.TroughDate))
}

func assetLabel(f analytics.Filter) string {
	if s := f.Asset(); s != "" {
		return s
	}
	return "All Assets"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// generateStrategies writes one row per strategy.
func (r *Reporter) generateStrategies() error {
	header := []string{
		"Strategy ID", "Strategy", "Trades", "PnL", "Win Rate %", "Max Drawdown %",
		"Peak Date", "Trough Date", "Sharpe", "Profit Factor", "Best Pair",
	}
	rows := make([][]string, 0, len(r.overview.Strategies))
	for _, m := range r.overview.Strategies {
		best := ""
		if len(m.BestPairs) > 0 {
			best = m.BestPairs[0].Symbol
		}
		rows = append(rows, []string{
			m.StrategyID,
			m.StrategyName,
			fmt.Sprintf("%d", m.TotalTrades),
			fmt.Sprintf("%.2f", m.PnL),
			fmt.Sprintf("%.2f", m.WinRate*100),
			fmt.Sprintf("%.2f", m.MaxDrawdown.Percent()),
			m.MaxDrawdown.PeakDate,
			m.MaxDrawdown.TroughDate,
			fmt.Sprintf("%.2f", m.Risk.SharpeRatio),
			fmt.Sprintf("%.2f", m.Risk.ProfitFactor),
			best,
		})
	}
	return r.writeCSV(StrategiesFile, header, rows)
}

// generateMonthly writes the monthly breakdown.
func (r *Reporter) generateMonthly() error {
	header := []string{"Month", "Return", "Trades", "Win Rate %", "Best Day", "Worst Day", "Max Drawdown %"}
	rows := make([][]string, 0, len(r.overview.Monthly))
	for _, m := range r.overview.Monthly {
		rows = append(rows, []string{
			m.Month,
			fmt.Sprintf("%.2f", m.Return),
			fmt.Sprintf("%d", m.Trades),
			fmt.Sprintf("%.2f", m.WinRate*100),
			fmt.Sprintf("%.2f", m.BestDay),
			fmt.Sprintf("%.2f", m.WorstDay),
			fmt.Sprintf("%.2f", m.MaxDrawdown*100),
		})
	}
	return r.writeCSV(MonthlyFile, header, rows)
}

// generateEquity writes the daily equity curve of one strategy.
func (r *Reporter) generateEquity(m analytics.StrategyMetrics) error {
	header := []string{"Date", "Equity", "Drawdown %"}
	rows := make([][]string, 0, len(m.EquityCurve))
	for _, p := range m.EquityCurve {
		rows = append(rows, []string{
			p.Date,
			fmt.Sprintf("%.2f", p.Equity),
			fmt.Sprintf("%.2f", p.Drawdown*100),
		})
	}
	return r.writeCSV(EquityFile(m.StrategyID), header, rows)
}

func (r *Reporter) writeCSV(name string, header []string, rows [][]string) error {
	csvPath := filepath.Join(r.outputPath, name)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	log.Info().Str("file", csvPath).Msg("CSV report generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONFile)

	report := map[string]interface{}{
		"filter": map[string]interface{}{
			"asset": assetLabel(r.filter),
			"from":  formatBound(r.filter.From),
			"to":    formatBound(r.filter.To),
		},
		"overview":     r.overview,
		"generated_at": r.overview.GeneratedAt,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// PrintSummary prints a short summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	o := r.overview
	fmt.Fprintln(w, "\n=== STRATEGY PERFORMANCE ===")
	fmt.Fprintf(w, "Period: %s to %s\n", orDash(o.DateRange.Min), orDash(o.DateRange.Max))
	fmt.Fprintf(w, "Assets: %s\n", assetLabel(r.filter))
	writeMetrics(w, o.Totals)
	for _, m := range o.Strategies {
		fmt.Fprintf(w, "  %-20s %6d trades  $%10.2f  %s\n", m.StrategyName, m.TotalTrades, m.PnL, drawdownLabel(m))
	}
	fmt.Fprintln(w, "============================")
}
