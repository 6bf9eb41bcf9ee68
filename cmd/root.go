/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gamevault",
	Short: "gamevault game catalog backend",
	Long: `gamevault serves the game catalog, user accounts and per-user game
libraries over a JSON REST API.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *logging.SlogLogger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}
