package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mezonai/powchain/config"
	"github.com/mezonai/powchain/logx"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath       string
	miningConfigPath string
	dataDir          string
	database         string
	logStderr        bool
}

// NewRootCmd builds the powchain command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "powchain",
		Short:         "Proof-of-work ledger CLI",
		Long:          "Command line interface for creating, extending and inspecting a local proof-of-work chain.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.logStderr {
				logx.Tee(cmd.ErrOrStderr())
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "node config file (yaml)")
	flags.StringVar(&opts.miningConfigPath, "mining-config", config.DefaultMiningConfigPath, "mining config file (ini)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "chain database directory (overrides config)")
	flags.StringVar(&opts.database, "database", "", "database backend: leveldb, bolt, pebble or badger (overrides config)")
	flags.BoolVar(&opts.logStderr, "log-stderr", false, "also write logs to stderr")

	rootCmd.AddCommand(
		newCreateChainCmd(opts),
		newAddBlockCmd(opts),
		newPrintChainCmd(opts),
		newVerifyChainCmd(opts),
		newShowCmd(opts),
	)
	return rootCmd
}

// Execute runs the CLI. Interrupts cancel any mining or verification in progress.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		logx.Error("CMD", "Command execution failed: ", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	if cerr := logx.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "Error closing log file:", cerr)
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
