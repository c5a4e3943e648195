package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/marmos91/dittorpc/internal/logger"
	"github.com/marmos91/dittorpc/pkg/adapter/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/config"
	"github.com/marmos91/dittorpc/pkg/server"
)

func main() {
	flags := pflag.NewFlagSet("dittorpc", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to the configuration file (default: "+config.GetDefaultConfigPath()+")")
	initConfig := flags.Bool("init", false, "write a default configuration file and exit")
	force := flags.Bool("force", false, "overwrite an existing file with --init")
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}

	if *initConfig {
		if err := runInit(*configPath, *force); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadWithFlags(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log output: %v\n", err)
		os.Exit(1)
	}

	if *configPath == "" && !config.ConfigExists() {
		logger.Info("No configuration file in %s, using defaults (create one with --init)", config.GetConfigDir())
	}

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func runInit(path string, force bool) error {
	if path == "" {
		written, err := config.InitConfig(force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", written)
		return nil
	}
	if err := config.InitConfigToPath(path, force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := cfg.CORS.Policy()
	if err != nil {
		return err
	}

	metricsResult := config.InitializeMetrics(cfg)

	dispatcher := newDispatcher()
	rpcAdapter, err := jsonrpc.New(cfg.Adapters.JSONRPC, dispatcher, policy, metricsResult.RPCMetrics)
	if err != nil {
		return err
	}
	rpcAdapter.SetPanicFunc(func() {
		logger.Error("A JSON-RPC connection crashed; the listener keeps serving")
	})

	srv := server.New(cfg.Server.ShutdownTimeout)
	if err := srv.AddAdapter(rpcAdapter); err != nil {
		return err
	}
	if metricsResult.Server != nil {
		if err := srv.AddAdapter(metricsResult.Server); err != nil {
			return err
		}
	}

	logger.Info("DittoRPC serving %d methods on %s (cors: %s). Press Ctrl+C to stop.",
		len(dispatcher.Methods()), cfg.Adapters.JSONRPC.Address(), policy)

	return srv.Serve(ctx)
}
