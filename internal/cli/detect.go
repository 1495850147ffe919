package cli

import (
	"github.com/spf13/cobra"

	"purchase-anomaly-alerts/internal/app"
)

var (
	batchPath  string
	streamPath string
	outputPath string
)

var detectCmd = &cobra.Command{
	Use:   "detect [batch_log stream_log flagged_log]",
	Short: "Load the batch log, replay the stream log and write flagged purchases",
	Args:  cobra.MatchAll(cobra.MaximumNArgs(3), validPositional),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Detect(cmd.Context(), logPaths(args))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [batch_log stream_log flagged_log]",
	Short: "Load the batch log and follow the stream log as it grows",
	Args:  cobra.MatchAll(cobra.MaximumNArgs(3), validPositional),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), logPaths(args))
	},
}

// validPositional accepts either no paths or all three.
func validPositional(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || len(args) == 3 {
		return nil
	}
	return cobra.ExactArgs(3)(cmd, args)
}

// logPaths prefers positional arguments, then flags; empty fields fall back
// to configuration.
func logPaths(args []string) app.DetectOptions {
	if len(args) == 3 {
		return app.DetectOptions{BatchPath: args[0], StreamPath: args[1], OutputPath: args[2]}
	}
	return app.DetectOptions{BatchPath: batchPath, StreamPath: streamPath, OutputPath: outputPath}
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, watchCmd} {
		cmd.Flags().StringVar(&batchPath, "batch", "", "Path to the batch log (defaults to config)")
		cmd.Flags().StringVar(&streamPath, "stream", "", "Path to the stream log (defaults to config)")
		cmd.Flags().StringVar(&outputPath, "output", "", "Path to the flagged purchases log (defaults to config)")
	}
}
