package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Output goes to stdout; keep logs out of it.
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Output = os.Stderr
	logCfg.Component = log.ComponentCLI
	logger := log.New(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*cli.Services, func(), error) {
		backend, err := cli.OpenStore(ctx, logger, cfg)
		if err != nil {
			return nil, nil, err
		}
		events := cli.StartEventSink(context.WithoutCancel(ctx), cfg, backend.Store, logger)
		svc := cli.NewServices(backend.Store, cfg, nil, events, logger)
		return svc, func() {
			events.Close()
			if err := backend.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		stop()
		os.Exit(cli.ExitCode(err))
	}
}
