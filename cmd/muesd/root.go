// Command muesd runs the prioritized event-dispatch daemon: start
// foreground-runs an Engine, stop and status talk to it over a local
// control socket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "muesd",
	Short: "Prioritized event-dispatch daemon with a bidirectional filter pipeline",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
