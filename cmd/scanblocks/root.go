package scanblocks

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BLOCKSCAN"

// NewRootCmd builds the scan-blocks command with its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "scan-blocks",
		Short: "Report blocks whose transaction count differs from an expected value",
		Long: `Connects to a node's JSON-RPC endpoint, walks every block from the start height
up to the chain tip and lists the blocks whose transaction count is not the expected one.`,
		Example:       "  scan-blocks --endpoint http://localhost:8545 --expected 200",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if configFile := v.GetString("config"); configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file %s: %w", configFile, err)
				}
			}

			return setupLogger(cmd.ErrOrStderr(), v.GetString("logLevel"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, v)
		},
	}

	cmd.Flags().StringP("endpoint", "e", "", "Node JSON-RPC endpoint (http(s)://, ws(s):// or IPC path)")
	cmd.Flags().Uint64P("expected", "x", 0, "Expected number of transactions per block")
	cmd.Flags().Uint64("start", 1, "First block height to scan")
	cmd.Flags().Uint64("end", 0, "Last block height to scan (0 scans up to the tip)")
	cmd.Flags().String("transport", "auto", "Client transport (auto, http, geth)")
	cmd.Flags().Duration("timeout", defaultTimeout, "Timeout of a single request")
	cmd.Flags().Uint("max-concurrency", 1, "Number of blocks fetched concurrently")
	cmd.Flags().Uint("max-retries", 0, "Number of retries of a failed request")
	cmd.Flags().Bool("skip-failed", false, "Skip blocks that cannot be fetched instead of aborting")
	cmd.Flags().Bool("progress", false, "Display a progress bar instead of one line per block")
	cmd.Flags().Bool("live", false, "Keep scanning new blocks as they are produced")
	cmd.Flags().Uint("block-time", 2, "Seconds between two tip queries in live mode")
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	cmd.Flags().String("metrics-addr", "", "Address to expose Prometheus metrics on (disabled when empty)")
	cmd.Flags().StringP("logLevel", "l", "info", "Set log level (debug, info, warn, error)")
	cmd.Flags().String("config", "", "Configuration file")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// Execute runs the root command and exits with a non-zero code on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("An error occurred", "error", err)
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
