// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sdkdump CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mlehane/sdkdump/internal/shell"
)

// version is set at build time via ldflags.
var version = "dev"

// lastSignal records the most recent termination signal so main can map
// it to the conventional exit code (130 for SIGINT, 143 for SIGTERM).
var lastSignal atomic.Int32

// rootCmd is the base command for the sdkdump CLI.
var rootCmd = &cobra.Command{
	Use:   "sdkdump",
	Short: "Batch interface extraction for OS library images",
	Long: `sdkdump walks the frameworks, bundles, and dynamic libraries of a system
image and extracts their declared interfaces: Objective-C class, protocol,
and category headers plus Swift module interfaces. Extraction can run on
the host or inside a booted simulator, with automatic environment
provisioning and per-item failure isolation.

Outputs are staged in a scratch directory and relocated atomically, so an
interrupted run never leaves partial artifacts in the output tree.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sdkdump.yaml or ~/.config/sdkdump/config.yaml)")
}

func initConfig() {
	// .env is optional; missing files are not an error.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sdkdump")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sdkdump"))
		}
	}

	viper.SetEnvPrefix("SDKDUMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// stringSetting reads a string flag, falling back to the matching viper key
// (config file or SDKDUMP_* environment) when the flag was not set explicitly.
func stringSetting(cmd *cobra.Command, name string) string {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetString(name)
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

// boolSetting is the bool counterpart of stringSetting.
func boolSetting(cmd *cobra.Command, name string) bool {
	if !cmd.Flags().Changed(name) && viper.IsSet(name) {
		return viper.GetBool(name)
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A second channel observes which signal arrived; NotifyContext only
	// cancels. The signal is also forwarded to any active child process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			if s, ok := sig.(syscall.Signal); ok {
				lastSignal.Store(int32(s))
				shell.ForwardSignal(s)
			}
		}
	}()

	err := rootCmd.ExecuteContext(ctx)

	switch syscall.Signal(lastSignal.Load()) {
	case syscall.SIGINT:
		os.Exit(130)
	case syscall.SIGTERM:
		os.Exit(143)
	}
	if err != nil {
		os.Exit(1)
	}
}
