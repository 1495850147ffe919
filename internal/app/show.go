package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"purchase-anomaly-alerts/internal/network"
)

// Show prints the most recently stored flagged purchases.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show flagged purchases")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentFlagged(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no flagged purchases found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Purchased At\tUser\tAmount\tMean\tSD\tBaseline\tD/T")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%d\t%d/%d\n",
			rec.PurchasedAt.Format(network.TimestampLayout),
			rec.UserID,
			formatDecimal(rec.Amount, 2),
			formatDecimal(rec.Mean, 2),
			formatDecimal(rec.StdDev, 2),
			rec.Baseline,
			rec.Degree,
			rec.HistorySize,
		)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	total, err := store.CountFlagged(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nshowing %d of %d flagged purchases\n", len(records), total)
	return nil
}
