//go:build !(js || wasm)

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cottand/occur/cmd"
	"github.com/cottand/occur/internal/log"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "occur [subcommand]",
	Short: "occur\n refines types from what is learnt about values at runtime tests",
	Args:  cobra.MinimumNArgs(1),
	PersistentPreRun: func(*cobra.Command, []string) {
		log.SetLevel(slog.Level(*logLevel))
		log.SetSections(*logSections...)
	},
	SilenceUsage: true,
}

var (
	logLevel    *int
	logSections *[]string
)

func init() {
	logLevel = rootCmd.PersistentFlags().IntP("log-level", "l", int(slog.LevelWarn), "log level")
	logSections = rootCmd.PersistentFlags().StringSlice("log-sections", []string{"refine", "env", "scenario"}, "sections whose debug and info records are shown")
	rootCmd.AddCommand(cmd.CheckCmd)
	rootCmd.AddCommand(cmd.UpdateCmd)
}
