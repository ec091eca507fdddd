package provider

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
)

var csvTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVHeader is the column order written by exports and accepted by LoadCSV.
var CSVHeader = []string{
	"id", "strategy_id", "strategy_name", "date", "symbol", "side",
	"quantity", "entry_price", "exit_price", "pnl",
}

// LoadFile loads trades from a .csv or .json file.
func LoadFile(path string) (*Static, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".json", ".ndjson", ".jsonl":
		return LoadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported trade file %q", path)
	}
}

// LoadCSV loads trades from a CSV file with a header row. Columns are
// matched by name; strategy_id, date and pnl are required.
func LoadCSV(path string) (*Static, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	trades, err := ReadCSV(file)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", path).
		Int("trades", len(trades)).
		Msg("CSV trades loaded")
	return NewStatic(trades), nil
}

// ReadCSV parses trades from r.
func ReadCSV(r io.Reader) ([]analytics.Trade, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"strategy_id", "date", "pnl"} {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", col)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := indices[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var trades []analytics.Trade
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Debug().Err(err).Int("line", line).Msg("Skipping unreadable CSV row")
			continue
		}

		trade, err := parseCSVRecord(func(name string) string { return field(record, name) })
		if err != nil {
			log.Debug().Err(err).Int("line", line).Msg("Skipping malformed CSV row")
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func parseCSVRecord(field func(string) string) (analytics.Trade, error) {
	t := analytics.Trade{
		ID:           field("id"),
		StrategyID:   field("strategy_id"),
		StrategyName: field("strategy_name"),
		Symbol:       field("symbol"),
	}
	if t.StrategyID == "" {
		return t, errors.New("missing strategy_id")
	}
	if t.StrategyName == "" {
		t.StrategyName = t.StrategyID
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	date, err := parseTime(field("date"))
	if err != nil {
		return t, err
	}
	t.Date = date

	side, err := parseSide(field("side"))
	if err != nil {
		return t, err
	}
	t.Side = side

	if t.PnL, err = strconv.ParseFloat(field("pnl"), 64); err != nil {
		return t, fmt.Errorf("pnl: %w", err)
	}
	for name, dst := range map[string]*float64{
		"quantity":    &t.Quantity,
		"entry_price": &t.EntryPrice,
		"exit_price":  &t.ExitPrice,
	} {
		v := field(name)
		if v == "" {
			continue
		}
		if *dst, err = strconv.ParseFloat(v, 64); err != nil {
			return t, fmt.Errorf("%s: %w", name, err)
		}
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseSide(s string) (analytics.Side, error) {
	switch strings.ToUpper(s) {
	case "", "LONG", "BUY":
		return analytics.Long, nil
	case "SHORT", "SELL":
		return analytics.Short, nil
	default:
		return "", fmt.Errorf("invalid side %q", s)
	}
}

// LoadJSON loads trades from a JSON array or newline-delimited JSON file.
func LoadJSON(path string) (*Static, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	trades, err := ReadJSON(file)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", path).
		Int("trades", len(trades)).
		Msg("JSON trades loaded")
	return NewStatic(trades), nil
}

// ReadJSON parses trades from r, accepting either a single array or one
// object per line. Records without a strategy or date are skipped.
func ReadJSON(r io.Reader) ([]analytics.Trade, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	var raw []analytics.Trade
	decoder := json.NewDecoder(br)
	if first == '[' {
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON trades: %w", err)
		}
	} else {
		for decoder.More() {
			var t analytics.Trade
			if err := decoder.Decode(&t); err != nil {
				return nil, fmt.Errorf("failed to decode JSON trade %d: %w", len(raw)+1, err)
			}
			raw = append(raw, t)
		}
	}

	trades := raw[:0]
	for _, t := range raw {
		if t.StrategyID == "" {
			log.Debug().Str("id", t.ID).Msg("Skipping JSON trade without strategy")
			continue
		}
		if t.Date.IsZero() {
			log.Debug().Str("id", t.ID).Msg("Skipping JSON trade without date")
			continue
		}
		if t.StrategyName == "" {
			t.StrategyName = t.StrategyID
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Side == "" {
			t.Side = analytics.Long
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// WriteCSV writes trades using CSVHeader.
func WriteCSV(w io.Writer, trades []analytics.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			t.StrategyID,
			t.StrategyName,
			t.Date.UTC().Format(time.RFC3339),
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
