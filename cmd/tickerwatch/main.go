package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tickerwatch",
	Short: "tickerwatch - periodic stock statistics on stdout",
	Long: `tickerwatch polls daily closing prices for a set of ticker symbols and
prints one CSV row of summary statistics per symbol per polling cycle:
period change, min, max and the latest n-day simple moving average.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
