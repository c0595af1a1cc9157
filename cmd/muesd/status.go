package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mues-io/muesd/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a running Engine's lifecycle state, tick, queue depth, and session count",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	resp, err := dialControl(cfg.ControlSocket, controlRequest{Action: "status"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "muesd: not running:", err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, "muesd:", resp.Error)
		os.Exit(1)
	}

	fmt.Printf("state=%s tick=%d uptime=%s sessions=%d queued=%d workers=%d\n",
		resp.State, resp.Tick, resp.Uptime, resp.Sessions, resp.Queued, resp.Workers)
	return nil
}
