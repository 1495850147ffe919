package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/network"
	"purchase-anomaly-alerts/internal/service"
)

// SimulateAlert pushes a synthetic purchase through the pipeline against a
// two-friend network whose baseline has exactly the requested mean and sd,
// and dispatches the resulting alert.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	amount, err := decimal.NewFromString(opts.Amount)
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}
	mean, err := decimal.NewFromString(opts.Mean)
	if err != nil {
		return fmt.Errorf("invalid --mean: %w", err)
	}
	sd, err := decimal.NewFromString(opts.StdDev)
	if err != nil {
		return fmt.Errorf("invalid --sd: %w", err)
	}
	if sd.IsNegative() || mean.Sub(sd).IsNegative() {
		return errors.New("--sd must be between 0 and --mean")
	}

	net, err := baselineNetwork(opts.UserID, mean, sd)
	if err != nil {
		return err
	}

	writer := eventlog.NewWriter(os.Stdout)
	svc := service.New(net, writer, nil, notifier, a.serviceOptions(), a.Logger)

	purchase := network.PurchaseEvent{
		UserID:     opts.UserID,
		Timestamp:  time.Now().UTC().Truncate(time.Second),
		Amount:     amount,
		AmountText: opts.Amount,
	}
	if err := svc.ProcessStreamEvent(ctx, purchase); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if writer.Written() == 0 {
		cutoff := network.Stats{Mean: mean, StdDev: sd}.Cutoff()
		return fmt.Errorf("amount %s does not exceed cutoff %s; nothing to alert", amount.String(), cutoff.StringFixedBank(2))
	}
	return nil
}

// baselineNetwork befriends userID with two users whose purchases are
// mean-sd and mean+sd, which has population mean `mean` and sd `sd`.
func baselineNetwork(userID int64, mean, sd decimal.Decimal) (*network.Network, error) {
	net, err := network.New(1, 2)
	if err != nil {
		return nil, err
	}
	low, high := userID+1, userID+2
	at := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	net.AddFriendship(userID, low)
	net.AddFriendship(userID, high)
	net.AddPurchase(low, at, mean.Sub(sd))
	net.AddPurchase(high, at, mean.Add(sd))
	return net, nil
}
