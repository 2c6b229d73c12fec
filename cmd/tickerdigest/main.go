// Package main is the entrypoint for the ticker digest bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgard/tickerdigest/internal/bot"
	"github.com/edgard/tickerdigest/internal/config"
)

var cfgFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickerdigest",
		Short: "Collect ticker mentions from Telegram chats and post a daily digest",
		Long: "Without a subcommand the mode comes from configuration (mode key, " +
			"TICKER_MODE or MODE) and defaults to schedule.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd.Context(), "")
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file; missing file means defaults and environment only")

	root.AddCommand(modeCmd(bot.ModeIngest, "Store chat messages until interrupted"))
	root.AddCommand(modeCmd(bot.ModeDigest, "Build the last 24 hours' digest, send it once and exit"))
	root.AddCommand(modeCmd(bot.ModeSchedule, "Store chat messages and send the digest daily"))
	root.AddCommand(configCmd())

	return root
}

func modeCmd(mode bot.Mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd.Context(), mode)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML (token redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Redacted())
		},
	}
}

// runMode loads configuration and runs mode, or the configured mode when
// mode is empty.
func runMode(ctx context.Context, mode bot.Mode) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", cfgFile, err)
	}

	if mode == "" {
		if mode, err = bot.ParseMode(cfg.Mode); err != nil {
			return err
		}
	}
	return run(ctx, cfg, mode)
}
