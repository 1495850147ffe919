package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"purchase-anomaly-alerts/internal/app"
	"purchase-anomaly-alerts/internal/network"
)

var (
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flagged purchases as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		var err error
		if opts.From, err = parseBound("--from", exportFrom); err != nil {
			return err
		}
		if opts.To, err = parseBound("--to", exportTo); err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

// parseBound accepts RFC3339 or the purchase timestamp layout (read as UTC).
func parseBound(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, network.TimestampLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s value %q: want RFC3339 or %q", flag, value, network.TimestampLayout)
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Earliest purchase time (inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Latest purchase time (exclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
