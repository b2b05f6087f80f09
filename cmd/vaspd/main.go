package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "vaspd",
		Short: "vaspd - off-chain VASP payment coordination daemon",
		Long:  "Runs and drives a two-party off-chain payment channel between VASPs",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (optional, flags/env override)")

	rootCmd.AddCommand(
		serveCmd(),
		submitCmd(),
		peersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*appConfig, error) {
	cfg, err := buildConfig(configFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
