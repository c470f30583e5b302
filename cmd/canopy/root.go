package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/cli"
)

var globalOpts cli.Options

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy is a client runtime for server component trees",
	Long: `Canopy fetches the element trees a server renders for each path, keeps them
in sessions, merges navigation and server function results into them, and
exposes the sessions over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env-file", ".env", "Environment file loaded before running")
	flags.StringVar(&globalOpts.Origin, "origin", "", "Server origin, e.g. http://localhost:3000 (env CANOPY_ORIGIN)")
	flags.StringVarP(&globalOpts.ConfigPath, "config", "c", "canopy.yaml", "Configuration file")
	flags.StringVar(&globalOpts.Dir, "dir", ".canopy/sessions", "Directory of the file snapshot store")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&globalOpts.LogFormat, "log-format", "text", "Log format: text, json")
	flags.BoolVar(&globalOpts.Debug, "debug", false, "Shorthand for --log-level debug")
}
