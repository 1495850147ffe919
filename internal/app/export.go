package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/network"
	"purchase-anomaly-alerts/internal/storage"
)

var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Export renders flagged purchases as CSV and/or PNG. Records come from the
// database when configured, otherwise from the output log.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	from := time.Time{}
	if opts.From != nil {
		from = opts.From.UTC()
	}
	to := endOfTime
	if opts.To != nil {
		to = opts.To.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := a.loadFlagged(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no flagged purchases found for export window")
		return nil
	}

	downsampled := downsampleFlagged(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting flagged purchases")

	if opts.CSVPath != "" {
		if err := writeFlaggedCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeFlaggedPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) loadFlagged(ctx context.Context, from, to time.Time) ([]storage.FlaggedPurchase, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer closeStore()
		return store.ListFlaggedBetween(ctx, from, to)
	}

	a.Logger.Debug().Str("path", a.Config.Output.Path).Msg("database not configured; exporting from output log")
	f, err := os.Open(a.Config.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}
	defer f.Close()

	lines, err := eventlog.ReadFlagged(f)
	if err != nil {
		return nil, err
	}
	return flaggedFromLog(lines, from, to)
}

func flaggedFromLog(lines []eventlog.FlaggedRecord, from, to time.Time) ([]storage.FlaggedPurchase, error) {
	out := make([]storage.FlaggedPurchase, 0, len(lines))
	for i, line := range lines {
		rec, err := parseFlaggedRecord(line)
		if err != nil {
			return nil, fmt.Errorf("output record %d: %w", i+1, err)
		}
		if rec.PurchasedAt.Before(from) || !rec.PurchasedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseFlaggedRecord(line eventlog.FlaggedRecord) (storage.FlaggedPurchase, error) {
	var rec storage.FlaggedPurchase
	var err error
	if rec.PurchasedAt, err = line.Time(); err != nil {
		return rec, err
	}
	if rec.UserID, err = line.UserID(); err != nil {
		return rec, fmt.Errorf("parse id: %w", err)
	}
	if rec.Amount, err = decimal.NewFromString(line.Amount); err != nil {
		return rec, fmt.Errorf("parse amount: %w", err)
	}
	if rec.Mean, err = decimal.NewFromString(line.Mean); err != nil {
		return rec, fmt.Errorf("parse mean: %w", err)
	}
	if rec.StdDev, err = decimal.NewFromString(line.SD); err != nil {
		return rec, fmt.Errorf("parse sd: %w", err)
	}
	return rec, nil
}

func downsampleFlagged(records []storage.FlaggedPurchase, max int) []storage.FlaggedPurchase {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.FlaggedPurchase, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeFlaggedCSV(path string, records []storage.FlaggedPurchase) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"purchased_at", "user_id", "amount", "mean", "sd", "cutoff"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.PurchasedAt.Format(network.TimestampLayout),
			strconv.FormatInt(rec.UserID, 10),
			formatDecimal(rec.Amount, 2),
			formatDecimal(rec.Mean, 2),
			formatDecimal(rec.StdDev, 2),
			formatDecimal(cutoffOf(rec), 2),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeFlaggedPNG(path string, records []storage.FlaggedPurchase) error {
	if len(records) < 2 {
		return errors.New("at least two flagged purchases are needed to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	amount := make([]float64, len(records))
	mean := make([]float64, len(records))
	cutoff := make([]float64, len(records))

	for i, rec := range records {
		x[i] = rec.PurchasedAt
		amount[i] = rec.Amount.InexactFloat64()
		mean[i] = rec.Mean.InexactFloat64()
		cutoff[i] = cutoffOf(rec).InexactFloat64()
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Amount",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Flagged amount",
				XValues: x,
				YValues: amount,
			},
			chart.TimeSeries{
				Name:    "Network mean",
				XValues: x,
				YValues: mean,
			},
			chart.TimeSeries{
				Name:    "Cutoff (mean + 3sd)",
				XValues: x,
				YValues: cutoff,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func cutoffOf(rec storage.FlaggedPurchase) decimal.Decimal {
	return network.Stats{Mean: rec.Mean, StdDev: rec.StdDev}.Cutoff()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixedBank(places)
}
