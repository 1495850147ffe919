package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"purchase-anomaly-alerts/internal/app"
)

var (
	simulateUser   int64
	simulateAmount string
	simulateMean   string
	simulateSD     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次异常消费并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAmount == "" || simulateMean == "" || simulateSD == "" {
			return errors.New("--amount、--mean 与 --sd 必须提供")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			UserID: simulateUser,
			Amount: simulateAmount,
			Mean:   simulateMean,
			StdDev: simulateSD,
		})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateUser, "id", 1, "消费用户 id")
	simulateCmd.Flags().StringVar(&simulateAmount, "amount", "", "消费金额")
	simulateCmd.Flags().StringVar(&simulateMean, "mean", "", "社交网络消费均值")
	simulateCmd.Flags().StringVar(&simulateSD, "sd", "", "社交网络消费标准差")
}
