package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schedule-bridge-backend/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridged",
	Short: "Room-booking bridge between the chat bot and the room solver",
	Long: `bridged accepts room searches and cancellations from the chat bot,
aligns them to the class timetable and forwards them to the room solver over
TCP. It also imports timetable sheets and serves the imported data.

Running bridged without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default $CONFIG_PATH or ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, importCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config path from the flag, then CONFIG_PATH, then the default.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml" // Default path for local development
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	return cfg, path, nil
}
