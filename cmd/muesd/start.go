package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mues-io/muesd/engine"
	"github.com/mues-io/muesd/iface"
	"github.com/mues-io/muesd/internal/adapters/auth"
	"github.com/mues-io/muesd/internal/adapters/transport"
	"github.com/mues-io/muesd/internal/adapters/userstore"
	"github.com/mues-io/muesd/internal/config"
	"github.com/mues-io/muesd/internal/logging"
	"github.com/mues-io/muesd/login"
	"github.com/mues-io/muesd/queue"
)

var seedFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the Engine in the foreground until stopped",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&seedFile, "seed", "", "YAML file of {username,password} entries to seed the user store with at startup")
}

func runStart(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	var log *logging.ZerologSink
	if cfg.Log.Format == "console" {
		log = logging.NewConsole(os.Stderr)
	} else {
		log = logging.New(os.Stderr)
	}

	store := userstore.New()
	if seedFile != "" {
		users, err := userstore.LoadSeedFile(seedFile)
		if err != nil {
			return err
		}
		if err := store.Seed(context.Background(), users); err != nil {
			return err
		}
		log.Log(iface.SeverityInfo, "seeded user store", iface.F("file", seedFile), iface.F("count", len(users)))
	}
	provider := auth.New(store, store)

	rateLimiter := login.NewLoginRateLimiter(map[time.Duration]int{
		cfg.Login.RateWindow: cfg.Login.RateLimit,
	})

	eng := engine.New(engine.Config{
		TickInterval: cfg.TickInterval,
		Queue: queue.Config{
			MinWorkers:          cfg.Queue.MinWorkers,
			MaxWorkers:          cfg.Queue.MaxWorkers,
			SupervisorThreshold: cfg.Queue.SupervisorThreshold,
		},
		Log:              log,
		AuthProvider:     provider,
		UserStore:        store,
		LoginMaxTries:    cfg.Login.MaxTries,
		LoginTimeout:     cfg.Login.Timeout,
		LoginRateLimiter: rateLimiter,
	})

	if err := eng.Start(); err != nil {
		return err
	}

	listener := transport.NewWebSocketListener(cfg.Listen.Address)
	go func() {
		if err := listener.Serve(); err != nil {
			log.Log(iface.SeverityError, "websocket listener stopped", iface.F("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Serve(ctx, listener, engine.ConnectionDefaults{
		LoginMaxTries: cfg.Login.MaxTries,
		LoginTimeout:  cfg.Login.Timeout,
		RateLimiter:   rateLimiter,
	})

	stopped := make(chan struct{})
	go func() {
		if err := runControlServer(cfg.ControlSocket, eng, stopped); err != nil {
			log.Log(iface.SeverityCrit, "control socket error", iface.F("error", err.Error()))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	clean := true
waiting:
	for {
		select {
		case <-sigCh:
			clean = eng.Stop(10 * time.Second)
			break waiting
		case <-time.After(200 * time.Millisecond):
			if eng.State() == engine.StateStopped {
				break waiting
			}
		}
	}

	cancel()
	listener.Close()
	close(stopped)

	if !clean {
		os.Exit(1)
	}
	return nil
}
