package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clearctl",
	Short: "Operate the clearline reconciliation core from the shell",
	Long: `clearctl runs reconciliation operations directly against the configured
database: shipment recalculation, declaration duty previews and item matching.

Configuration is read from the same environment variables as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("org", "", "organization id (required)")
	_ = rootCmd.MarkPersistentFlagRequired("org")

	rootCmd.AddCommand(recalcCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(matchCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
