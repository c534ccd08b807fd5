package main

import (
	"os"

	"github.com/dkeye/Huddle/internal/ui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Join a Huddle room from the terminal",
	Long: `Huddle is a headless participant for Huddle rooms. It joins a room over the
signaling server, chats, and keeps peer-to-peer media links with everyone else
in the room.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}
