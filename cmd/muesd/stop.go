package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mues-io/muesd/internal/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running Engine to shut down cleanly",
	RunE:  runStop,
}

func runStop(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	resp, err := dialControl(cfg.ControlSocket, controlRequest{Action: "stop"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "muesd: not running:", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, "muesd: stop did not complete cleanly:", resp.Error)
		os.Exit(1)
	}
	fmt.Println("stopped")
	return nil
}
