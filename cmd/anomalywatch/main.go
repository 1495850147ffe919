package main

import "purchase-anomaly-alerts/internal/cli"

func main() {
	cli.Execute()
}
