package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payment-links",
	Short: "Payment links microservice",
	Long:  "A payment request service for Razorpay payment links and UPI QR orders, with webhook reconciliation, status sync and audit log replay.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
