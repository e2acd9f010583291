package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "captionjob",
	Short: "Caption pipeline for recorded lectures and other media",
	Long: `captionjob transcribes a media asset, renders caption tracks and
publishes them to a storage bucket.

The asset can be a local file, a direct URL, or an HLS master manifest, in
which case the best source media behind the manifest is located first.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which fails a running job.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Configuration file (default ~/.config/captionjob/config.toml)")
}
