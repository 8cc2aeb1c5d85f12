package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/compose-network/epoch-prover/log"
	"github.com/compose-network/epoch-prover/prover-node-app/config"
	"github.com/compose-network/epoch-prover/x/prover"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "prover-node",
		Short: "Epoch prover node",
		Long:  banner + "\n\nProves rollup epochs: orchestrates the circuit proof tree and serves circuit provers.",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve a circuit prover pool over REST",
		RunE:  runServe,
	}

	proveCmd = &cobra.Command{
		Use:   "prove <scenario.yaml>",
		Short: "Prove the epochs described by a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runProve,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}
)

const banner = `
███████╗██████╗  ██████╗  ██████╗██╗  ██╗
██╔════╝██╔══██╗██╔═══██╗██╔════╝██║  ██║
█████╗  ██████╔╝██║   ██║██║     ███████║
██╔══╝  ██╔═══╝ ██║   ██║██║     ██╔══██║
███████╗██║     ╚██████╔╝╚██████╗██║  ██║
╚══════╝╚═╝      ╚═════╝  ╚═════╝╚═╝  ╚═╝

██████╗ ██████╗  ██████╗ ██╗   ██╗███████╗██████╗
██╔══██╗██╔══██╗██╔═══██╗██║   ██║██╔════╝██╔══██╗
██████╔╝██████╔╝██║   ██║██║   ██║█████╗  ██████╔╝
██╔═══╝ ██╔══██╗██║   ██║╚██╗ ██╔╝██╔══╝  ██╔══██╗
██║     ██║  ██║╚██████╔╝ ╚████╔╝ ███████╗██║  ██║
╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═══╝  ╚══════╝╚═╝  ╚═╝`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(serveCmd, proveCmd, versionCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty logging")

	// Prover flags
	rootCmd.PersistentFlags().String("prover-mode", "", "prover mode (local, remote)")
	rootCmd.PersistentFlags().String("prover-url", "", "remote prover base URL")
	rootCmd.PersistentFlags().Int("workers", 0, "maximum concurrent circuit jobs")

	// Serve flags
	serveCmd.Flags().String("listen-addr", "", "HTTP API listen address")
	serveCmd.Flags().Bool("metrics", false, "serve prometheus metrics")

	// Prove flags
	proveCmd.Flags().String("data-dir", "", "world state directory (empty keeps state in memory)")
	proveCmd.Flags().String("output", "", "write epoch proofs as JSON to this file instead of stdout")
}

func loadConfig(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid flags: %w", err)
	}

	logger := log.New(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")
	logger.Info().
		Str("config_file", cfgFile).
		Str("prover_mode", string(cfg.Prover.Mode)).
		Int("workers", cfg.Prover.Workers).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	fmt.Println(banner)
	fmt.Println()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run()
}

func runVersion(*cobra.Command, []string) {
	fmt.Println(banner)
	fmt.Println()
	fmt.Printf("Epoch Prover\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if changed("log-pretty") {
		cfg.Log.Pretty, _ = flags.GetBool("log-pretty")
	}

	if changed("prover-mode") {
		mode, _ := flags.GetString("prover-mode")
		cfg.Prover.Mode = prover.Mode(mode)
	}
	if changed("prover-url") {
		cfg.Prover.BaseURL, _ = flags.GetString("prover-url")
	}
	if changed("workers") {
		cfg.Prover.Workers, _ = flags.GetInt("workers")
	}

	if changed("listen-addr") {
		cfg.API.ListenAddr, _ = flags.GetString("listen-addr")
	}
	if changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}

	if changed("data-dir") {
		cfg.WorldState.DataDir, _ = flags.GetString("data-dir")
	}
}
