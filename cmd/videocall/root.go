package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pintr/p2p-videocall/internal/ui"
	"github.com/pintr/p2p-videocall/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "videocall",
	Short:   "Two-party video calls over WebRTC",
	Long:    `videocall pairs exactly two participants through a signaling relay and negotiates a direct peer-to-peer media session between them. Media never touches the relay; it only coordinates room membership and the offer/answer exchange.`,
	Version: version.Version,
}

// Execute runs the root command.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Production default only shows errors;
// LOG_LEVEL overrides.
func newLogger() zerolog.Logger {
	level := zerolog.ErrorLevel
	switch os.Getenv("LOG_LEVEL") {
	case "dev", "development", "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
